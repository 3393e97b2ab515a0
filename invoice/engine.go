package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/money"
	"github.com/miragespace/subpay/notifier"
	"github.com/miragespace/subpay/plan"
	"github.com/miragespace/subpay/user"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Invoices become due this long after issuance
const (
	periodDueIn     = 14 * 24 * time.Hour
	planChangeDueIn = 7 * 24 * time.Hour
)

// Store is the persistence interface the engine operates over. *Manager
// satisfies it.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	ListPendingDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error)
}

// Options contains the configuration for the invoice Engine
type Options struct {
	Store    Store
	Notifier notifier.Notifier
	Logger   *zap.Logger
}

// Engine issues invoices and drives their settlement state. Status never
// changes except through the engine; the payment engine is the only other
// writer, and only for PAID and REFUNDED.
type Engine struct {
	Options
}

// NewEngine returns a new Engine for invoices
func NewEngine(option Options) (*Engine, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Notifier == nil {
		return nil, fmt.Errorf("nil Notifier is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Engine{
		Options: option,
	}, nil
}

// Generate issues the invoice for a billing period, both the first charge of
// a subscription and each renewal. Amounts are computed from the plan price
// plus flat tax; the total is always amount + tax - discount.
func (e *Engine) Generate(ctx context.Context, subject Subject, u *user.User, p *plan.Plan) (*Invoice, error) {
	now := time.Now()

	periodStart := subject.PeriodStart
	if periodStart.IsZero() {
		periodStart = now
	}
	periodEnd := subject.PeriodEnd
	if periodEnd.IsZero() {
		periodEnd = periodStart.AddDate(0, 1, 0)
	}

	amount := p.Price
	tax := money.Tax(amount)
	discount := decimal.Zero

	inv := &Invoice{
		ID:                 uuid.New().String(),
		InvoiceNumber:      NewNumber(now),
		UserID:             u.ID,
		SubscriptionID:     subject.SubscriptionID,
		UserEmail:          u.Email,
		UserName:           u.FullName,
		PlanName:           p.Name,
		Amount:             amount,
		TaxAmount:          tax,
		DiscountAmount:     discount,
		TotalAmount:        money.Total(amount, tax, discount),
		Currency:           p.Currency,
		Status:             StatusPending,
		InvoiceDate:        now,
		DueDate:            now.Add(periodDueIn),
		BillingPeriodStart: periodStart,
		BillingPeriodEnd:   periodEnd,
	}

	if err := e.Store.Create(ctx, inv); err != nil {
		return nil, err
	}

	e.Logger.Info("Invoice generated",
		zap.String("InvoiceID", inv.ID),
		zap.String("InvoiceNumber", inv.InvoiceNumber),
		zap.String("SubscriptionID", inv.SubscriptionID),
		zap.String("TotalAmount", inv.TotalAmount.String()),
	)

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindInvoiceCreated,
		OccurredAt: now,
		UserID:     u.ID,
		UserEmail:  u.Email,
		Payload: map[string]string{
			"invoiceNumber": inv.InvoiceNumber,
			"planName":      inv.PlanName,
			"totalAmount":   inv.TotalAmount.String(),
			"currency":      inv.Currency,
			"dueDate":       inv.DueDate.Format(time.RFC3339),
		},
	})

	return inv, nil
}

// GeneratePlanChange issues the prorated charge for a plan upgrade. The
// charge is the plan price difference; downgrades and same-price switches
// produce no invoice and return (nil, nil).
func (e *Engine) GeneratePlanChange(ctx context.Context, subject Subject, u *user.User, oldPlan, newPlan *plan.Plan) (*Invoice, error) {
	delta := newPlan.Price.Sub(oldPlan.Price)
	if delta.Sign() <= 0 {
		return nil, nil
	}

	now := time.Now()
	tax := money.Tax(delta)
	discount := decimal.Zero

	inv := &Invoice{
		ID:                 uuid.New().String(),
		InvoiceNumber:      NewNumber(now),
		UserID:             u.ID,
		SubscriptionID:     subject.SubscriptionID,
		UserEmail:          u.Email,
		UserName:           u.FullName,
		PlanName:           newPlan.Name,
		Amount:             delta,
		TaxAmount:          tax,
		DiscountAmount:     discount,
		TotalAmount:        money.Total(delta, tax, discount),
		Currency:           newPlan.Currency,
		Status:             StatusPending,
		InvoiceDate:        now,
		DueDate:            now.Add(planChangeDueIn),
		BillingPeriodStart: subject.PeriodStart,
		BillingPeriodEnd:   subject.PeriodEnd,
		Notes:              fmt.Sprintf("Prorated charge for plan upgrade from %s to %s", oldPlan.Name, newPlan.Name),
	}

	if err := e.Store.Create(ctx, inv); err != nil {
		return nil, err
	}

	e.Logger.Info("Plan change invoice generated",
		zap.String("InvoiceID", inv.ID),
		zap.String("InvoiceNumber", inv.InvoiceNumber),
		zap.String("SubscriptionID", inv.SubscriptionID),
		zap.String("TotalAmount", inv.TotalAmount.String()),
	)

	return inv, nil
}

// MarkPaid settles an invoice out of band, without a payment record. The
// payment engine settles invoices itself after a captured charge; this
// operation backs the admin API for wire transfers and the like.
func (e *Engine) MarkPaid(ctx context.Context, id string) (*Invoice, error) {
	inv, err := e.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperror.NotFound("invoice", "id", id)
	}

	if inv.Status == StatusPaid {
		return nil, apperror.InvalidState("invoice is already paid")
	}
	if !CanTransition(inv.Status, StatusPaid) {
		return nil, apperror.InvalidState(fmt.Sprintf("invoice in status %s cannot be marked paid", inv.Status))
	}

	now := time.Now()
	inv.Status = StatusPaid
	inv.PaidDate = &now

	if err := e.Store.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Cancel voids an unpaid invoice
func (e *Engine) Cancel(ctx context.Context, id string) (*Invoice, error) {
	inv, err := e.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperror.NotFound("invoice", "id", id)
	}

	if inv.Status == StatusPaid {
		return nil, apperror.InvalidState("paid invoice cannot be cancelled")
	}
	if !CanTransition(inv.Status, StatusCancelled) {
		return nil, apperror.InvalidState(fmt.Sprintf("invoice in status %s cannot be cancelled", inv.Status))
	}

	inv.Status = StatusCancelled

	if err := e.Store.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// SweepOverdue flips past-due PENDING invoices to OVERDUE and returns how
// many were flipped. The sweep only selects PENDING rows, so running it
// twice is harmless.
func (e *Engine) SweepOverdue(ctx context.Context) (int, error) {
	pending, err := e.Store.ListPendingDueBefore(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	flipped := 0
	for i := range pending {
		inv := pending[i]
		inv.Status = StatusOverdue
		if err := e.Store.Update(ctx, &inv); err != nil {
			e.Logger.Error("Unable to mark invoice overdue",
				zap.String("InvoiceID", inv.ID),
				zap.Error(err),
			)
			continue
		}
		flipped++
	}

	if flipped > 0 {
		e.Logger.Info("Overdue sweep completed",
			zap.Int("Flipped", flipped),
		)
	}
	return flipped, nil
}
