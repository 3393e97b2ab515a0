package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChargeResult is the outcome of a charge attempt. A declined charge is a
// result, not an error; errors are reserved for the gateway call itself
// failing.
type ChargeResult struct {
	Success       bool
	PaymentID     string
	FailureReason string
}

// RefundResult is the outcome of a refund attempt
type RefundResult struct {
	Success       bool
	RefundID      string
	FailureReason string
}

// Client is the payment processor contract consumed by the payment engine.
// Both calls block for the duration of the processor round trip and must
// honor ctx cancellation.
type Client interface {
	Name() string
	Charge(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*ChargeResult, error)
	Refund(ctx context.Context, externalPaymentID string, amount decimal.Decimal) (*RefundResult, error)
}
