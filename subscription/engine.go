package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/invoice"
	"github.com/miragespace/subpay/notifier"
	"github.com/miragespace/subpay/plan"
	"github.com/miragespace/subpay/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence interface the engine operates over. *Manager
// satisfies it.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id string) (*Subscription, error)
	HasCurrent(ctx context.Context, userID string) (bool, error)
}

// UserStore looks up the subscribing user
type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Catalog looks up plans
type Catalog interface {
	GetByID(ctx context.Context, id string) (*plan.Plan, error)
}

// OrderVerifier answers whether a payment order clears the payment gate
type OrderVerifier interface {
	IsVerified(ctx context.Context, orderID string) (bool, error)
	PlanIDFor(ctx context.Context, orderID string) (string, error)
}

// Issuer generates invoices on behalf of the engine
type Issuer interface {
	Generate(ctx context.Context, subject invoice.Subject, u *user.User, p *plan.Plan) (*invoice.Invoice, error)
	GeneratePlanChange(ctx context.Context, subject invoice.Subject, u *user.User, oldPlan, newPlan *plan.Plan) (*invoice.Invoice, error)
}

// Options contains the configuration for the subscription Engine
type Options struct {
	Store    Store
	Users    UserStore
	Plans    Catalog
	Orders   OrderVerifier
	Invoices Issuer
	Notifier notifier.Notifier
	Logger   *zap.Logger
}

// Engine drives the subscription lifecycle. It is the only writer of
// subscription status.
type Engine struct {
	Options
}

// NewEngine returns a new Engine for subscriptions
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
	if option.Orders == nil {
		return nil, fmt.Errorf("nil Orders is invalid")
	}
	if option.Invoices == nil {
		return nil, fmt.Errorf("nil Invoices is invalid")
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

// CreateRequest describes a new subscription
type CreateRequest struct {
	UserID         string
	PlanID         string
	PaymentOrderID string
	AutoRenew      bool
}

// Create starts a subscription for a user. Paid plans without a trial are
// gated on a verified payment order for the same plan; trial plans start in
// TRIAL and bill nothing until the trial lapses. A user can hold at most one
// ACTIVE or TRIAL subscription at a time.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Subscription, error) {
	u, err := e.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user", "id", req.UserID)
	}

	p, err := e.Plans.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NotFound("plan", "id", req.PlanID)
	}
	if !p.Active {
		return nil, apperror.InvalidState("plan is not available for purchase")
	}

	current, err := e.Store.HasCurrent(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if current {
		return nil, apperror.Conflict("user already has an active subscription")
	}

	if p.RequiresPayment() {
		if err := e.checkPaymentGate(ctx, req.PaymentOrderID, p.ID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	sub := &Subscription{
		ID:           uuid.New().String(),
		UserID:       u.ID,
		PlanID:       p.ID,
		UserEmail:    u.Email,
		PlanName:     p.Name,
		PlanCurrency: p.Currency,
		StartDate:    now,
		AutoRenew:    req.AutoRenew,
	}

	// the billing cycle runs from the start date regardless of trial; the
	// trial only defers the first bill
	sub.EndDate = p.BillingCycle.Advance(now)
	if p.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, p.TrialDays)
		sub.Status = StatusTrial
		sub.TrialEndDate = &trialEnd
		sub.NextBillingDate = trialEnd
	} else {
		sub.Status = StatusActive
		sub.NextBillingDate = sub.EndDate
	}

	if err := e.Store.Create(ctx, sub); err != nil {
		return nil, err
	}

	logger := e.Logger.With(
		zap.String("SubscriptionID", sub.ID),
		zap.String("UserID", u.ID),
		zap.String("PlanID", p.ID),
	)
	logger.Info("Subscription created",
		zap.String("Status", string(sub.Status)),
	)

	// trial subscriptions bill nothing until the trial lapses
	if sub.Status == StatusActive && p.Price.Sign() > 0 {
		if _, err := e.Invoices.Generate(ctx, e.subject(sub), u, p); err != nil {
			logger.Error("Unable to generate initial invoice",
				zap.Error(err),
			)
			return nil, err
		}
	}

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindSubscriptionCreated,
		OccurredAt: now,
		UserID:     u.ID,
		UserEmail:  u.Email,
		Payload: map[string]string{
			"subscriptionId": sub.ID,
			"planName":       sub.PlanName,
			"status":         string(sub.Status),
			"endDate":        sub.EndDate.Format(time.RFC3339),
		},
	})

	return sub, nil
}

// Cancel terminates a subscription. Cancellation is allowed from every
// status except CANCELLED itself; only an explicit Renew reverses it.
func (e *Engine) Cancel(ctx context.Context, id, userID, reason string) (*Subscription, error) {
	sub, err := e.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status == StatusCancelled {
		return nil, apperror.InvalidState("subscription is already cancelled")
	}

	now := time.Now()
	sub.Status = StatusCancelled
	sub.CancelledAt = &now
	sub.CancellationReason = reason
	sub.AutoRenew = false

	if err := e.Store.Update(ctx, sub); err != nil {
		return nil, err
	}

	e.Logger.Info("Subscription cancelled",
		zap.String("SubscriptionID", sub.ID),
		zap.String("Reason", reason),
	)

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindSubscriptionCancelled,
		OccurredAt: now,
		UserID:     sub.UserID,
		UserEmail:  sub.UserEmail,
		Payload: map[string]string{
			"subscriptionId": sub.ID,
			"planName":       sub.PlanName,
			"reason":         reason,
		},
	})

	return sub, nil
}

// ChangePlan switches a current subscription to a different plan. An upgrade
// issues a prorated invoice for the price difference; downgrades change the
// plan with no charge. The billing period does not move.
func (e *Engine) ChangePlan(ctx context.Context, id, userID, newPlanID string) (*Subscription, error) {
	sub, err := e.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !sub.Status.Current() {
		return nil, apperror.InvalidState(fmt.Sprintf("subscription in status %s cannot change plans", sub.Status))
	}
	if sub.PlanID == newPlanID {
		return nil, apperror.Validation("subscription is already on this plan")
	}

	newPlan, err := e.Plans.GetByID(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if newPlan == nil {
		return nil, apperror.NotFound("plan", "id", newPlanID)
	}
	if !newPlan.Active {
		return nil, apperror.InvalidState("plan is not available for purchase")
	}

	u, err := e.Users.GetByID(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user", "id", sub.UserID)
	}

	oldPlan, err := e.Plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	oldPlanID := sub.PlanID
	oldPlanName := sub.PlanName
	sub.PlanID = newPlan.ID
	sub.PlanName = newPlan.Name
	sub.PlanCurrency = newPlan.Currency

	// the new cycle starts now; remaining time on the old cycle is not
	// carried over, only the price difference is prorated
	now := time.Now()
	sub.EndDate = newPlan.BillingCycle.Advance(now)
	sub.NextBillingDate = sub.EndDate

	if err := e.Store.Update(ctx, sub); err != nil {
		return nil, err
	}

	logger := e.Logger.With(
		zap.String("SubscriptionID", sub.ID),
		zap.String("OldPlan", oldPlanName),
		zap.String("NewPlan", newPlan.Name),
	)
	logger.Info("Subscription plan changed")

	if oldPlan == nil {
		// old plan was deleted from the catalog, no baseline to prorate from
		logger.Warn("Old plan no longer exists, skipping prorated invoice",
			zap.String("OldPlanID", oldPlanID),
		)
	} else {
		if _, err := e.Invoices.GeneratePlanChange(ctx, e.subject(sub), u, oldPlan, newPlan); err != nil {
			logger.Error("Unable to generate prorated invoice",
				zap.Error(err),
			)
			return nil, err
		}
	}

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindSubscriptionPlanChanged,
		OccurredAt: time.Now(),
		UserID:     sub.UserID,
		UserEmail:  sub.UserEmail,
		Payload: map[string]string{
			"subscriptionId": sub.ID,
			"oldPlanName":    oldPlanName,
			"newPlanName":    newPlan.Name,
		},
	})

	return sub, nil
}

// Renew starts a fresh billing cycle from now and always issues the invoice
// for the new period. A CANCELLED or EXPIRED subscription is reactivated and
// its cancellation record cleared; an ACTIVE subscription has nothing to
// renew.
func (e *Engine) Renew(ctx context.Context, id, userID string) (*Subscription, error) {
	sub, err := e.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status == StatusActive {
		return nil, apperror.InvalidState("subscription is already active")
	}

	p, err := e.Plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.InvalidState("subscription plan is no longer available")
	}

	u, err := e.Users.GetByID(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user", "id", sub.UserID)
	}

	now := time.Now()
	sub.Status = StatusActive
	sub.StartDate = now
	sub.EndDate = p.BillingCycle.Advance(now)
	sub.NextBillingDate = sub.EndDate
	sub.CancelledAt = nil
	sub.CancellationReason = ""

	if err := e.Store.Update(ctx, sub); err != nil {
		return nil, err
	}

	e.Logger.Info("Subscription renewed",
		zap.String("SubscriptionID", sub.ID),
		zap.Time("EndDate", sub.EndDate),
	)

	subject := invoice.Subject{
		SubscriptionID: sub.ID,
		PeriodStart:    now,
		PeriodEnd:      sub.EndDate,
	}
	if _, err := e.Invoices.Generate(ctx, subject, u, p); err != nil {
		e.Logger.Error("Unable to generate renewal invoice",
			zap.String("SubscriptionID", sub.ID),
			zap.Error(err),
		)
		return nil, err
	}

	e.Notifier.Notify(notifier.Event{
		Kind:       notifier.KindSubscriptionRenewed,
		OccurredAt: now,
		UserID:     sub.UserID,
		UserEmail:  sub.UserEmail,
		Payload: map[string]string{
			"subscriptionId": sub.ID,
			"planName":       sub.PlanName,
			"endDate":        sub.EndDate.Format(time.RFC3339),
		},
	})

	return sub, nil
}

// ToggleAutoRenew sets the auto renew flag to the requested value. It is a
// pure flag write with no status checks.
func (e *Engine) ToggleAutoRenew(ctx context.Context, id, userID string, value bool) (*Subscription, error) {
	sub, err := e.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	sub.AutoRenew = value

	if err := e.Store.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns a subscription after checking ownership
func (e *Engine) Get(ctx context.Context, id, userID string) (*Subscription, error) {
	return e.getOwned(ctx, id, userID)
}

// getOwned fetches a subscription and enforces ownership. An empty userID
// skips the ownership check for operator and task callers.
func (e *Engine) getOwned(ctx context.Context, id, userID string) (*Subscription, error) {
	sub, err := e.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.NotFound("subscription", "id", id)
	}
	if userID != "" && sub.UserID != userID {
		return nil, apperror.Authorization("subscription does not belong to the user")
	}
	return sub, nil
}

func (e *Engine) checkPaymentGate(ctx context.Context, orderID, planID string) error {
	if orderID == "" {
		return apperror.PaymentRequired("payment order required for this plan")
	}
	verified, err := e.Orders.IsVerified(ctx, orderID)
	if err != nil {
		return err
	}
	if !verified {
		return apperror.PaymentRequired("payment order is not verified")
	}
	orderPlanID, err := e.Orders.PlanIDFor(ctx, orderID)
	if err != nil {
		return err
	}
	if orderPlanID != planID {
		return apperror.PaymentRequired("payment order was created for a different plan")
	}
	return nil
}

func (e *Engine) subject(sub *Subscription) invoice.Subject {
	return invoice.Subject{
		SubscriptionID: sub.ID,
		PeriodStart:    sub.StartDate,
		PeriodEnd:      sub.EndDate,
	}
}
