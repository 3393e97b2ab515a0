package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Static is a Client with fixed outcomes, used in tests and local smoke
// setups where non-deterministic declines get in the way
type Static struct {
	ChargeOutcome *ChargeResult
	RefundOutcome *RefundResult
	// Err, when set, is returned from both calls before any outcome
	Err error
}

var _ Client = &Static{}

// Name implements Client
func (s *Static) Name() string {
	return "static"
}

// Charge implements Client
func (s *Static) Charge(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*ChargeResult, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.ChargeOutcome, nil
}

// Refund implements Client
func (s *Static) Refund(ctx context.Context, externalPaymentID string, amount decimal.Decimal) (*RefundResult, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.RefundOutcome, nil
}
