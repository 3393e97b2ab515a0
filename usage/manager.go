package usage

import (
	"context"
	"time"

	"github.com/miragespace/subpay/apperror"
	"github.com/miragespace/subpay/user"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserStore looks up the account a sample belongs to
type UserStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Manager records and aggregates metered usage
type Manager struct {
	db     *gorm.DB
	users  UserStore
	logger *zap.Logger
}

// NewManager returns a new Manager for usage records
func NewManager(logger *zap.Logger, db *gorm.DB, users UserStore) (*Manager, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize usage.Manager")
	}
	return &Manager{
		db:     db,
		users:  users,
		logger: logger,
	}, nil
}

// Track records one usage sample for a user
func (m *Manager) Track(ctx context.Context, userID, metric string, quantity int64) (*Record, error) {
	if metric == "" {
		return nil, apperror.Validation("metric is required")
	}
	if quantity <= 0 {
		return nil, apperror.Validation("quantity must be positive")
	}

	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("user", "id", userID)
	}

	rec := &Record{
		ID:         uuid.New().String(),
		UserID:     u.ID,
		UserEmail:  u.Email,
		Metric:     metric,
		Quantity:   quantity,
		RecordedAt: time.Now(),
	}
	result := m.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		m.logger.Error("Unable to create usage record in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create usage record")
	}
	return rec, nil
}

// TotalSince returns the aggregate of one metric for a user since the given
// time
func (m *Manager) TotalSince(ctx context.Context, userID, metric string, since time.Time) (int64, error) {
	var total int64
	err := m.db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(quantity), 0) FROM usage_records WHERE user_id = ? AND metric = ? AND recorded_at >= ?`,
			userID, metric, since).
		Scan(&total).Error
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return 0, extErrors.Wrap(err, "Cannot compute usage total")
	}
	return total, nil
}

// Summary returns per-metric totals for a user since the given time
func (m *Manager) Summary(ctx context.Context, userID string, since time.Time) ([]MetricTotal, error) {
	results := make([]MetricTotal, 0, 4)
	err := m.db.WithContext(ctx).
		Raw(`SELECT metric, COALESCE(SUM(quantity), 0) AS total FROM usage_records
			WHERE user_id = ? AND recorded_at >= ?
			GROUP BY metric
			ORDER BY metric`, userID, since).
		Scan(&results).Error
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot compute usage summary")
	}
	return results, nil
}
