package order

import (
	"context"
	"fmt"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/plan"
	"github.com/miragespace/subpay/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence interface the engine operates over. *Manager
// satisfies it.
type Store interface {
	Create(ctx context.Context, o *PaymentOrder) error
	Update(ctx context.Context, o *PaymentOrder) error
	GetByExternalID(ctx context.Context, externalID string) (*PaymentOrder, error)
}

// Catalog looks up plans
type Catalog interface {
	GetByID(ctx context.Context, id string) (*plan.Plan, error)
}

// UserStore looks up users so the order can snapshot their email
type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Options contains the configuration for the order Engine
type Options struct {
	Store    Store
	Users    UserStore
	Plans    Catalog
	Verifier *Verifier
	Logger   *zap.Logger
}

// Engine runs the payment order handshake
type Engine struct {
	Options
}

// NewEngine returns a new Engine for payment orders
func NewEngine(option Options) (*Engine, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Users == nil {
		return nil, fmt.Errorf("nil Users is invalid")
	}
	if option.Plans == nil {
		return nil, fmt.Errorf("nil Plans is invalid")
	}
	if option.Verifier == nil {
		return nil, fmt.Errorf("nil Verifier is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Engine{
		Options: option,
	}, nil
}

// InitiateResult is the outcome of starting a checkout
type InitiateResult struct {
	// PaymentRequired is false for free and trial plans, which need no
	// order at all
	PaymentRequired bool          `json:"paymentRequired"`
	Order           *PaymentOrder `json:"order,omitempty"`
}

// Initiate starts a checkout for a plan
func (e *Engine) Initiate(ctx context.Context, userID, planID string) (*InitiateResult, error) {
	u, err := e.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user", "id", userID)
	}

	p, err := e.Plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NotFound("plan", "id", planID)
	}
	if !p.Active {
		return nil, apperror.InvalidState("plan is not available for purchase")
	}

	if !p.RequiresPayment() {
		return &InitiateResult{
			PaymentRequired: false,
		}, nil
	}

	o := &PaymentOrder{
		ID:         uuid.New().String(),
		ExternalID: newExternalID(),
		UserID:     u.ID,
		UserEmail:  u.Email,
		PlanID:     p.ID,
		PlanName:   p.Name,
		Amount:     p.Price,
		Currency:   p.Currency,
		Status:     StatusPending,
	}

	if err := e.Store.Create(ctx, o); err != nil {
		return nil, err
	}

	e.Logger.Info("Payment order initiated",
		zap.String("OrderID", o.ExternalID),
		zap.String("UserID", userID),
		zap.String("PlanID", p.ID),
		zap.String("Amount", o.Amount.String()),
	)

	return &InitiateResult{
		PaymentRequired: true,
		Order:           o,
	}, nil
}

// VerifyRequest carries the client's proof of payment
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

// VerifyResult is the outcome of a verification attempt
type VerifyResult struct {
	Verified      bool          `json:"verified"`
	FailureReason string        `json:"failureReason,omitempty"`
	Order         *PaymentOrder `json:"order"`
}

// Verify checks the client's signature over the order/payment pair. A bad
// signature fails the order and is reported in the result, not as an error;
// verifying an already verified order is a no-op that reports success.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	o, err := e.Store.GetByExternalID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperror.NotFound("payment order", "id", req.OrderID)
	}

	switch o.Status {
	case StatusSuccess:
		return &VerifyResult{
			Verified: true,
			Order:    o,
		}, nil
	case StatusFailed:
		return nil, apperror.InvalidState("payment order already failed verification")
	}

	if !e.Verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		o.Status = StatusFailed
		o.FailureReason = "invalid payment signature"
		if err := e.Store.Update(ctx, o); err != nil {
			return nil, err
		}
		e.Logger.Warn("Payment order signature mismatch",
			zap.String("OrderID", o.ExternalID),
		)
		return &VerifyResult{
			Verified:      false,
			FailureReason: o.FailureReason,
			Order:         o,
		}, nil
	}

	o.Status = StatusSuccess
	o.ExternalPaymentID = req.PaymentID
	o.Signature = req.Signature

	if err := e.Store.Update(ctx, o); err != nil {
		return nil, err
	}

	e.Logger.Info("Payment order verified",
		zap.String("OrderID", o.ExternalID),
		zap.String("PaymentID", req.PaymentID),
	)

	return &VerifyResult{
		Verified: true,
		Order:    o,
	}, nil
}

// IsVerified reports whether the payment order completed verification. An
// unknown order is simply not verified, letting the subscribe gate report
// the payment-required error instead of a lookup failure.
func (e *Engine) IsVerified(ctx context.Context, orderID string) (bool, error) {
	o, err := e.Store.GetByExternalID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o == nil {
		return false, nil
	}
	return o.Status == StatusSuccess, nil
}

// PlanIDFor returns the plan the payment order was created for
func (e *Engine) PlanIDFor(ctx context.Context, orderID string) (string, error) {
	o, err := e.Store.GetByExternalID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o == nil {
		return "", apperror.NotFound("payment order", "id", orderID)
	}
	return o.PlanID, nil
}
