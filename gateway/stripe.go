package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

var minorUnits = decimal.NewFromInt(100)

// Stripe charges through the Stripe API. Selected with GATEWAY=stripe; the
// default deployment uses the Simulated client.
type Stripe struct {
	api *client.API
}

var _ Client = &Stripe{}

// NewStripe returns a Stripe-backed gateway Client
func NewStripe(key string) *Stripe {
	sc := &client.API{}
	sc.Init(key, nil)
	return &Stripe{
		api: sc,
	}
}

// Name implements Client
func (s *Stripe) Name() string {
	return "stripe"
}

// Charge implements Client. The off-session confirm uses the customer's
// default payment method; a decline comes back as a failed result, not an
// error.
func (s *Stripe) Charge(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:      stripe.Int64(amount.Mul(minorUnits).IntPart()),
		Currency:    stripe.String(strings.ToLower(currency)),
		Confirm:     stripe.Bool(true),
		Description: stripe.String(reference),
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			return &ChargeResult{
				Success:       false,
				FailureReason: stripeErr.Msg,
			}, nil
		}
		return nil, err
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &ChargeResult{
			Success:       false,
			FailureReason: "payment intent not captured: " + string(pi.Status),
		}, nil
	}
	return &ChargeResult{
		Success:   true,
		PaymentID: pi.ID,
	}, nil
}

// Refund implements Client
func (s *Stripe) Refund(ctx context.Context, externalPaymentID string, amount decimal.Decimal) (*RefundResult, error) {
	params := &stripe.RefundParams{
		Params: stripe.Params{
			Context: ctx,
		},
		PaymentIntent: stripe.String(externalPaymentID),
		Amount:        stripe.Int64(amount.Mul(minorUnits).IntPart()),
	}
	r, err := s.api.Refunds.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			return &RefundResult{
				Success:       false,
				FailureReason: stripeErr.Msg,
			}, nil
		}
		return nil, err
	}
	return &RefundResult{
		Success:  true,
		RefundID: r.ID,
	}, nil
}
