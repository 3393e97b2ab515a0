package order_test

import (
	"context"
	"testing"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/order"
	"github.com/miragespace/subpay/plan"
	"github.com/miragespace/subpay/user"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStore is a mock implementation of order.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, o *order.PaymentOrder) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockStore) Update(ctx context.Context, o *order.PaymentOrder) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockStore) GetByExternalID(ctx context.Context, externalID string) (*order.PaymentOrder, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.PaymentOrder), args.Error(1)
}

// MockCatalog is a mock implementation of order.Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetByID(ctx context.Context, id string) (*plan.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.Plan), args.Error(1)
}

// MockUsers is a mock implementation of order.UserStore
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

func knownUser(users *MockUsers, ctx context.Context) {
	users.On("GetByID", ctx, "user-1").Return(&user.User{
		ID:    "user-1",
		Email: "alice@example.com",
	}, nil)
}

func newEngine(t *testing.T, store order.Store, users order.UserStore, plans order.Catalog) *order.Engine {
	verifier, err := order.NewVerifier(order.VerifierOptions{
		Secret: "0123456789abcdef",
	})
	require.NoError(t, err)
	engine, err := order.NewEngine(order.Options{
		Store:    store,
		Users:    users,
		Plans:    plans,
		Verifier: verifier,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return engine
}

func paidPlan() *plan.Plan {
	return &plan.Plan{
		ID:           "plan-1",
		Name:         "Pro",
		Price:        decimal.RequireFromString("100.00"),
		Currency:     "USD",
		BillingCycle: plan.CycleMonthly,
		Active:       true,
	}
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()

	t.Run("paid plan creates a pending order", func(t *testing.T) {
		store := new(MockStore)
		users := new(MockUsers)
		plans := new(MockCatalog)
		engine := newEngine(t, store, users, plans)

		knownUser(users, ctx)
		plans.On("GetByID", ctx, "plan-1").Return(paidPlan(), nil)
		store.On("Create", ctx, mock.AnythingOfType("*order.PaymentOrder")).Return(nil)

		result, err := engine.Initiate(ctx, "user-1", "plan-1")

		require.NoError(t, err)
		assert.True(t, result.PaymentRequired)
		require.NotNil(t, result.Order)
		assert.Equal(t, order.StatusPending, result.Order.Status)
		assert.Equal(t, "user-1", result.Order.UserID)
		assert.Equal(t, "alice@example.com", result.Order.UserEmail)
		assert.Equal(t, "Pro", result.Order.PlanName)
		assert.True(t, result.Order.Amount.Equal(decimal.RequireFromString("100.00")))
		assert.Len(t, result.Order.ExternalID, 20)
		assert.Equal(t, "order_", result.Order.ExternalID[:6])
	})

	t.Run("trial plan needs no order", func(t *testing.T) {
		store := new(MockStore)
		users := new(MockUsers)
		plans := new(MockCatalog)
		engine := newEngine(t, store, users, plans)

		knownUser(users, ctx)
		trial := paidPlan()
		trial.TrialDays = 14
		plans.On("GetByID", ctx, "plan-1").Return(trial, nil)

		result, err := engine.Initiate(ctx, "user-1", "plan-1")

		require.NoError(t, err)
		assert.False(t, result.PaymentRequired)
		assert.Nil(t, result.Order)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("free plan needs no order", func(t *testing.T) {
		store := new(MockStore)
		users := new(MockUsers)
		plans := new(MockCatalog)
		engine := newEngine(t, store, users, plans)

		knownUser(users, ctx)
		free := paidPlan()
		free.Price = decimal.Zero
		plans.On("GetByID", ctx, "plan-1").Return(free, nil)

		result, err := engine.Initiate(ctx, "user-1", "plan-1")

		require.NoError(t, err)
		assert.False(t, result.PaymentRequired)
	})

	t.Run("inactive plan is rejected", func(t *testing.T) {
		store := new(MockStore)
		users := new(MockUsers)
		plans := new(MockCatalog)
		engine := newEngine(t, store, users, plans)

		knownUser(users, ctx)
		retired := paidPlan()
		retired.Active = false
		plans.On("GetByID", ctx, "plan-1").Return(retired, nil)

		_, err := engine.Initiate(ctx, "user-1", "plan-1")

		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	})

	t.Run("unknown plan", func(t *testing.T) {
		store := new(MockStore)
		users := new(MockUsers)
		plans := new(MockCatalog)
		engine := newEngine(t, store, users, plans)

		knownUser(users, ctx)
		plans.On("GetByID", ctx, "nope").Return(nil, nil)

		_, err := engine.Initiate(ctx, "user-1", "nope")

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	t.Run("unknown user", func(t *testing.T) {
		store := new(MockStore)
		users := new(MockUsers)
		plans := new(MockCatalog)
		engine := newEngine(t, store, users, plans)

		users.On("GetByID", ctx, "nobody").Return(nil, nil)

		_, err := engine.Initiate(ctx, "nobody", "plan-1")

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
		plans.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestVerifyOrder(t *testing.T) {
	ctx := context.Background()

	pendingOrder := func() *order.PaymentOrder {
		return &order.PaymentOrder{
			ID:         "id-1",
			ExternalID: "order_abc123def456gh",
			UserID:     "user-1",
			PlanID:     "plan-1",
			Amount:     decimal.RequireFromString("110.00"),
			Currency:   "USD",
			Status:     order.StatusPending,
		}
	}

	t.Run("matching signature verifies the order", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		o := pendingOrder()
		store.On("GetByExternalID", ctx, o.ExternalID).Return(o, nil)
		store.On("Update", ctx, mock.MatchedBy(func(o *order.PaymentOrder) bool {
			return o.Status == order.StatusSuccess
		})).Return(nil)

		verifier, err := order.NewVerifier(order.VerifierOptions{Secret: "0123456789abcdef"})
		require.NoError(t, err)

		result, err := engine.Verify(ctx, order.VerifyRequest{
			OrderID:   o.ExternalID,
			PaymentID: "pay_123",
			Signature: verifier.Sign(o.ExternalID, "pay_123"),
		})

		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, "pay_123", result.Order.ExternalPaymentID)
		store.AssertExpectations(t)
	})

	t.Run("bad signature fails the order without an error", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		o := pendingOrder()
		store.On("GetByExternalID", ctx, o.ExternalID).Return(o, nil)
		store.On("Update", ctx, mock.MatchedBy(func(o *order.PaymentOrder) bool {
			return o.Status == order.StatusFailed && o.FailureReason == "invalid payment signature"
		})).Return(nil)

		result, err := engine.Verify(ctx, order.VerifyRequest{
			OrderID:   o.ExternalID,
			PaymentID: "pay_123",
			Signature: "bogus",
		})

		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, "invalid payment signature", result.FailureReason)
		store.AssertExpectations(t)
	})

	t.Run("verifying twice is a no-op", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		o := pendingOrder()
		o.Status = order.StatusSuccess
		store.On("GetByExternalID", ctx, o.ExternalID).Return(o, nil)

		result, err := engine.Verify(ctx, order.VerifyRequest{
			OrderID:   o.ExternalID,
			PaymentID: "pay_123",
			Signature: "anything",
		})

		require.NoError(t, err)
		assert.True(t, result.Verified)
		store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("failed order stays failed", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		o := pendingOrder()
		o.Status = order.StatusFailed
		store.On("GetByExternalID", ctx, o.ExternalID).Return(o, nil)

		_, err := engine.Verify(ctx, order.VerifyRequest{
			OrderID:   o.ExternalID,
			PaymentID: "pay_123",
			Signature: "anything",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	})

	t.Run("unknown order", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		store.On("GetByExternalID", ctx, "order_nope").Return(nil, nil)

		_, err := engine.Verify(ctx, order.VerifyRequest{
			OrderID: "order_nope",
		})

		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestIsVerified(t *testing.T) {
	ctx := context.Background()

	t.Run("reflects the order status", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		store.On("GetByExternalID", ctx, "order_done").Return(&order.PaymentOrder{Status: order.StatusSuccess}, nil)
		store.On("GetByExternalID", ctx, "order_open").Return(&order.PaymentOrder{Status: order.StatusPending}, nil)

		verified, err := engine.IsVerified(ctx, "order_done")
		require.NoError(t, err)
		assert.True(t, verified)

		verified, err = engine.IsVerified(ctx, "order_open")
		require.NoError(t, err)
		assert.False(t, verified)
	})

	t.Run("unknown order is simply not verified", func(t *testing.T) {
		store := new(MockStore)
		engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

		store.On("GetByExternalID", ctx, "order_nope").Return(nil, nil)

		verified, err := engine.IsVerified(ctx, "order_nope")

		require.NoError(t, err)
		assert.False(t, verified)
	})
}

func TestPlanIDFor(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	engine := newEngine(t, store, new(MockUsers), new(MockCatalog))

	store.On("GetByExternalID", ctx, "order_done").Return(&order.PaymentOrder{PlanID: "plan-1"}, nil)
	store.On("GetByExternalID", ctx, "order_nope").Return(nil, nil)

	planID, err := engine.PlanIDFor(ctx, "order_done")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", planID)

	_, err = engine.PlanIDFor(ctx, "order_nope")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
