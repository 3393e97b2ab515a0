package analytics

import (
	"context"

	extErrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MonthlyRevenue is the settled revenue for one calendar month
type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// StatusCount is the number of rows holding a status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// PlanPopularity is the number of subscriptions ever taken on a plan
type PlanPopularity struct {
	PlanName string `json:"planName"`
	Count    int64  `json:"count"`
}

// Summary is the operator dashboard headline
type Summary struct {
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	ActiveSubscriptions int64           `json:"activeSubscriptions"`
	TrialSubscriptions  int64           `json:"trialSubscriptions"`
	PendingInvoices     int64           `json:"pendingInvoices"`
	OverdueInvoices     int64           `json:"overdueInvoices"`
	FailedPayments      int64           `json:"failedPayments"`
}

// Manager runs read-only aggregates over the billing tables. It never writes;
// the numbers are computed from the denormalized records the engines leave
// behind.
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for analytics
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// MonthlyRevenueReport returns settled revenue per month, most recent first
func (m *Manager) MonthlyRevenueReport(ctx context.Context, months int) ([]MonthlyRevenue, error) {
	if months <= 0 {
		months = 12
	}
	results := make([]MonthlyRevenue, 0, months)
	err := m.db.WithContext(ctx).
		Raw(`SELECT to_char(paid_date, 'YYYY-MM') AS month, COALESCE(SUM(total_amount), 0) AS revenue
			FROM invoices
			WHERE status = 'PAID' AND paid_date IS NOT NULL
			GROUP BY 1
			ORDER BY 1 DESC
			LIMIT ?`, months).
		Scan(&results).Error
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot compute monthly revenue")
	}
	return results, nil
}

// SubscriptionStats returns the subscription count per status
func (m *Manager) SubscriptionStats(ctx context.Context) ([]StatusCount, error) {
	results := make([]StatusCount, 0, 6)
	err := m.db.WithContext(ctx).
		Raw(`SELECT status, COUNT(*) AS count FROM subscriptions GROUP BY status ORDER BY status`).
		Scan(&results).Error
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot compute subscription stats")
	}
	return results, nil
}

// PlanPopularityReport returns subscription counts per plan, most popular
// first. Plan names are read from the subscription snapshot, so deleted plans
// still show up.
func (m *Manager) PlanPopularityReport(ctx context.Context) ([]PlanPopularity, error) {
	results := make([]PlanPopularity, 0, 5)
	err := m.db.WithContext(ctx).
		Raw(`SELECT plan_name, COUNT(*) AS count FROM subscriptions GROUP BY plan_name ORDER BY count DESC`).
		Scan(&results).Error
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot compute plan popularity")
	}
	return results, nil
}

// DashboardSummary returns the headline numbers for the operator dashboard
func (m *Manager) DashboardSummary(ctx context.Context) (*Summary, error) {
	var s Summary
	db := m.db.WithContext(ctx)

	err := db.Raw(`SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE status = 'PAID'`).
		Scan(&s.TotalRevenue).Error
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot compute total revenue")
	}

	counts := []struct {
		dest  *int64
		query string
	}{
		{&s.ActiveSubscriptions, `SELECT COUNT(*) FROM subscriptions WHERE status = 'ACTIVE'`},
		{&s.TrialSubscriptions, `SELECT COUNT(*) FROM subscriptions WHERE status = 'TRIAL'`},
		{&s.PendingInvoices, `SELECT COUNT(*) FROM invoices WHERE status = 'PENDING'`},
		{&s.OverdueInvoices, `SELECT COUNT(*) FROM invoices WHERE status = 'OVERDUE'`},
		{&s.FailedPayments, `SELECT COUNT(*) FROM payments WHERE status = 'FAILED'`},
	}
	for _, c := range counts {
		if err := db.Raw(c.query).Scan(c.dest).Error; err != nil {
			m.logger.Error("Database returned error",
				zap.Error(err),
			)
			return nil, extErrors.Wrap(err, "Cannot compute dashboard summary")
		}
	}

	return &s, nil
}
