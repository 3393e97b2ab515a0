package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/invoice"
	"github.com/miragespace/subpay/notifier"
	"github.com/miragespace/subpay/plan"
	"github.com/miragespace/subpay/subscription"
	"github.com/miragespace/subpay/user"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStore is a mock implementation of subscription.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *MockStore) HasCurrent(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockUsers is a mock implementation of subscription.UserStore
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

// MockPlans is a mock implementation of subscription.Catalog
type MockPlans struct {
	mock.Mock
}

func (m *MockPlans) GetByID(ctx context.Context, id string) (*plan.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.Plan), args.Error(1)
}

// MockOrders is a mock implementation of subscription.OrderVerifier
type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) IsVerified(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrders) PlanIDFor(ctx context.Context, orderID string) (string, error) {
	args := m.Called(ctx, orderID)
	return args.String(0), args.Error(1)
}

// MockIssuer is a mock implementation of subscription.Issuer
type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Generate(ctx context.Context, subject invoice.Subject, u *user.User, p *plan.Plan) (*invoice.Invoice, error) {
	args := m.Called(ctx, subject, u, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockIssuer) GeneratePlanChange(ctx context.Context, subject invoice.Subject, u *user.User, oldPlan, newPlan *plan.Plan) (*invoice.Invoice, error) {
	args := m.Called(ctx, subject, u, oldPlan, newPlan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

type recordingNotifier struct {
	events []notifier.Event
}

func (r *recordingNotifier) Notify(event notifier.Event) {
	r.events = append(r.events, event)
}

type fixture struct {
	store    *MockStore
	users    *MockUsers
	plans    *MockPlans
	orders   *MockOrders
	invoices *MockIssuer
	recorder *recordingNotifier
	engine   *subscription.Engine
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		store:    new(MockStore),
		users:    new(MockUsers),
		plans:    new(MockPlans),
		orders:   new(MockOrders),
		invoices: new(MockIssuer),
		recorder: &recordingNotifier{},
	}
	engine, err := subscription.NewEngine(subscription.Options{
		Store:    f.store,
		Users:    f.users,
		Plans:    f.plans,
		Orders:   f.orders,
		Invoices: f.invoices,
		Notifier: f.recorder,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func testUser() *user.User {
	return &user.User{
		ID:    "user-1",
		Email: "alice@example.com",
	}
}

func paidPlan() *plan.Plan {
	return &plan.Plan{
		ID:           "plan-paid",
		Name:         "Pro",
		Price:        decimal.RequireFromString("29.99"),
		Currency:     "USD",
		BillingCycle: plan.CycleMonthly,
		Active:       true,
	}
}

func trialPlan() *plan.Plan {
	return &plan.Plan{
		ID:           "plan-trial",
		Name:         "Starter",
		Price:        decimal.RequireFromString("9.99"),
		Currency:     "USD",
		BillingCycle: plan.CycleMonthly,
		TrialDays:    14,
		Active:       true,
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("trial plan starts in TRIAL and bills nothing", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-trial").Return(trialPlan(), nil)
		f.store.On("HasCurrent", ctx, "user-1").Return(false, nil)
		f.store.On("Create", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)

		sub, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID: "user-1",
			PlanID: "plan-trial",
		})

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, sub.Status)
		require.NotNil(t, sub.TrialEndDate)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *sub.TrialEndDate, time.Minute)
		// the cycle runs a full month; the trial only defers the first bill
		assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), sub.EndDate, time.Minute)
		assert.Equal(t, *sub.TrialEndDate, sub.NextBillingDate)
		assert.Equal(t, "Starter", sub.PlanName)
		assert.Equal(t, "alice@example.com", sub.UserEmail)

		f.invoices.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		require.Len(t, f.recorder.events, 1)
		assert.Equal(t, notifier.KindSubscriptionCreated, f.recorder.events[0].Kind)
	})

	t.Run("paid plan requires a verified order", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(paidPlan(), nil)
		f.store.On("HasCurrent", ctx, "user-1").Return(false, nil)

		_, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID: "user-1",
			PlanID: "plan-paid",
		})

		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindPaymentRequired))
	})

	t.Run("unverified order is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(paidPlan(), nil)
		f.store.On("HasCurrent", ctx, "user-1").Return(false, nil)
		f.orders.On("IsVerified", ctx, "order_abc").Return(false, nil)

		_, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID:         "user-1",
			PlanID:         "plan-paid",
			PaymentOrderID: "order_abc",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindPaymentRequired))
	})

	t.Run("order for a different plan is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(paidPlan(), nil)
		f.store.On("HasCurrent", ctx, "user-1").Return(false, nil)
		f.orders.On("IsVerified", ctx, "order_abc").Return(true, nil)
		f.orders.On("PlanIDFor", ctx, "order_abc").Return("plan-other", nil)

		_, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID:         "user-1",
			PlanID:         "plan-paid",
			PaymentOrderID: "order_abc",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindPaymentRequired))
	})

	t.Run("verified order activates and invoices", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(paidPlan(), nil)
		f.store.On("HasCurrent", ctx, "user-1").Return(false, nil)
		f.orders.On("IsVerified", ctx, "order_abc").Return(true, nil)
		f.orders.On("PlanIDFor", ctx, "order_abc").Return("plan-paid", nil)
		f.store.On("Create", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)
		f.invoices.On("Generate", ctx, mock.AnythingOfType("invoice.Subject"), mock.Anything, mock.Anything).
			Return(&invoice.Invoice{ID: "inv-1"}, nil)

		sub, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID:         "user-1",
			PlanID:         "plan-paid",
			PaymentOrderID: "order_abc",
			AutoRenew:      true,
		})

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.True(t, sub.AutoRenew)
		assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), sub.EndDate, time.Minute)
		f.invoices.AssertExpectations(t)
	})

	t.Run("second current subscription is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-trial").Return(trialPlan(), nil)
		f.store.On("HasCurrent", ctx, "user-1").Return(true, nil)

		_, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID: "user-1",
			PlanID: "plan-trial",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("inactive plan is rejected", func(t *testing.T) {
		f := newFixture(t)
		inactive := paidPlan()
		inactive.Active = false
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(inactive, nil)

		_, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID: "user-1",
			PlanID: "plan-paid",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("GetByID", ctx, "ghost").Return(nil, nil)

		_, err := f.engine.Create(ctx, subscription.CreateRequest{
			UserID: "ghost",
			PlanID: "plan-trial",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("active subscription is cancelled", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:        "sub-1",
			UserID:    "user-1",
			Status:    subscription.StatusActive,
			AutoRenew: true,
		}, nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)

		sub, err := f.engine.Cancel(ctx, "sub-1", "user-1", "too expensive")

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, sub.Status)
		assert.False(t, sub.AutoRenew)
		assert.Equal(t, "too expensive", sub.CancellationReason)
		require.NotNil(t, sub.CancelledAt)
		require.Len(t, f.recorder.events, 1)
		assert.Equal(t, notifier.KindSubscriptionCancelled, f.recorder.events[0].Kind)
	})

	t.Run("cancelling twice fails", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:     "sub-1",
			UserID: "user-1",
			Status: subscription.StatusCancelled,
		}, nil)

		_, err := f.engine.Cancel(ctx, "sub-1", "user-1", "")

		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	})

	t.Run("foreign subscription is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:     "sub-1",
			UserID: "user-1",
			Status: subscription.StatusActive,
		}, nil)

		_, err := f.engine.Cancel(ctx, "sub-1", "user-2", "")

		assert.True(t, apperror.IsKind(err, apperror.KindAuthorization))
	})
}

func TestChangePlan(t *testing.T) {
	ctx := context.Background()

	basic := &plan.Plan{ID: "plan-basic", Name: "Basic", Price: decimal.RequireFromString("10.00"), Currency: "USD", BillingCycle: plan.CycleMonthly, Active: true}
	pro := &plan.Plan{ID: "plan-pro", Name: "Pro", Price: decimal.RequireFromString("40.00"), Currency: "USD", BillingCycle: plan.CycleMonthly, Active: true}

	current := func() *subscription.Subscription {
		return &subscription.Subscription{
			ID:       "sub-1",
			UserID:   "user-1",
			PlanID:   "plan-basic",
			PlanName: "Basic",
			Status:   subscription.StatusActive,
		}
	}

	t.Run("upgrade issues a prorated invoice", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(current(), nil)
		f.plans.On("GetByID", ctx, "plan-pro").Return(pro, nil)
		f.plans.On("GetByID", ctx, "plan-basic").Return(basic, nil)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)
		f.invoices.On("GeneratePlanChange", ctx, mock.AnythingOfType("invoice.Subject"), mock.Anything, basic, pro).
			Return(&invoice.Invoice{ID: "inv-1"}, nil)

		sub, err := f.engine.ChangePlan(ctx, "sub-1", "user-1", "plan-pro")

		require.NoError(t, err)
		assert.Equal(t, "plan-pro", sub.PlanID)
		assert.Equal(t, "Pro", sub.PlanName)
		// the new cycle starts now, not from the old cycle's remainder
		assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), sub.EndDate, time.Minute)
		assert.Equal(t, sub.EndDate, sub.NextBillingDate)
		f.invoices.AssertExpectations(t)
		require.Len(t, f.recorder.events, 1)
		assert.Equal(t, notifier.KindSubscriptionPlanChanged, f.recorder.events[0].Kind)
		assert.Equal(t, "Basic", f.recorder.events[0].Payload["oldPlanName"])
		assert.Equal(t, "Pro", f.recorder.events[0].Payload["newPlanName"])
	})

	t.Run("same plan is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(current(), nil)

		_, err := f.engine.ChangePlan(ctx, "sub-1", "user-1", "plan-basic")

		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("cancelled subscription cannot change plans", func(t *testing.T) {
		f := newFixture(t)
		cancelled := current()
		cancelled.Status = subscription.StatusCancelled
		f.store.On("GetByID", ctx, "sub-1").Return(cancelled, nil)

		_, err := f.engine.ChangePlan(ctx, "sub-1", "user-1", "plan-pro")

		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	})
}

func TestRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("expired subscription is reactivated and invoiced", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:        "sub-1",
			UserID:    "user-1",
			PlanID:    "plan-paid",
			Status:    subscription.StatusExpired,
			StartDate: time.Now().AddDate(0, -1, 0),
			EndDate:   time.Now().AddDate(0, 0, -3),
		}, nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(paidPlan(), nil)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)
		f.invoices.On("Generate", ctx, mock.AnythingOfType("invoice.Subject"), mock.Anything, mock.Anything).
			Return(&invoice.Invoice{ID: "inv-1"}, nil)

		sub, err := f.engine.Renew(ctx, "sub-1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.WithinDuration(t, time.Now(), sub.StartDate, time.Minute)
		assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), sub.EndDate, time.Minute)
		f.invoices.AssertExpectations(t)
		require.Len(t, f.recorder.events, 1)
		assert.Equal(t, notifier.KindSubscriptionRenewed, f.recorder.events[0].Kind)
	})

	t.Run("cancelled subscription is reactivated and cleared", func(t *testing.T) {
		f := newFixture(t)
		cancelledAt := time.Now().AddDate(0, 0, -7)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:                 "sub-1",
			UserID:             "user-1",
			PlanID:             "plan-paid",
			Status:             subscription.StatusCancelled,
			StartDate:          time.Now().AddDate(0, -1, 0),
			EndDate:            time.Now().AddDate(0, 0, 21),
			CancelledAt:        &cancelledAt,
			CancellationReason: "too expensive",
		}, nil)
		f.plans.On("GetByID", ctx, "plan-paid").Return(paidPlan(), nil)
		f.users.On("GetByID", ctx, "user-1").Return(testUser(), nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)
		f.invoices.On("Generate", ctx, mock.AnythingOfType("invoice.Subject"), mock.Anything, mock.Anything).
			Return(&invoice.Invoice{ID: "inv-1"}, nil)

		sub, err := f.engine.Renew(ctx, "sub-1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Nil(t, sub.CancelledAt)
		assert.Empty(t, sub.CancellationReason)
		assert.WithinDuration(t, time.Now(), sub.StartDate, time.Minute)
		assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), sub.EndDate, time.Minute)
		f.invoices.AssertExpectations(t)
	})

	t.Run("active subscription cannot be renewed", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:     "sub-1",
			UserID: "user-1",
			Status: subscription.StatusActive,
		}, nil)

		_, err := f.engine.Renew(ctx, "sub-1", "user-1")

		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
		f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestToggleAutoRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("flag is set to the requested value", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:        "sub-1",
			UserID:    "user-1",
			Status:    subscription.StatusActive,
			AutoRenew: false,
		}, nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)

		sub, err := f.engine.ToggleAutoRenew(ctx, "sub-1", "user-1", true)

		require.NoError(t, err)
		assert.True(t, sub.AutoRenew)
	})

	t.Run("setting the current value is a plain write", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:        "sub-1",
			UserID:    "user-1",
			Status:    subscription.StatusActive,
			AutoRenew: true,
		}, nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)

		sub, err := f.engine.ToggleAutoRenew(ctx, "sub-1", "user-1", true)

		require.NoError(t, err)
		assert.True(t, sub.AutoRenew)
	})

	t.Run("status does not gate the write", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("GetByID", ctx, "sub-1").Return(&subscription.Subscription{
			ID:        "sub-1",
			UserID:    "user-1",
			Status:    subscription.StatusCancelled,
			AutoRenew: false,
		}, nil)
		f.store.On("Update", ctx, mock.AnythingOfType("*subscription.Subscription")).Return(nil)

		sub, err := f.engine.ToggleAutoRenew(ctx, "sub-1", "user-1", true)

		require.NoError(t, err)
		assert.True(t, sub.AutoRenew)
	})
}
