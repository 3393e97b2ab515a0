package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/miragespace/subpay/apperror"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles subscription persistence
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for subscriptions. Besides the model
// migration it installs a partial unique index so two concurrent creates for
// the same user cannot both land a current subscription.
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_current_per_user ON subscriptions (user_id) WHERE status IN ('ACTIVE','TRIAL')",
	).Error; err != nil {
		return nil, extErrors.Wrap(err, "Cannot create current subscription index")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create persists a new subscription. The partial unique index turns a
// lost check-then-write race into a conflict here.
func (m *Manager) Create(ctx context.Context, sub *Subscription) error {
	result := m.db.WithContext(ctx).Create(sub)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "duplicate key") {
			return apperror.Conflict("user already has an active subscription")
		}
		m.logger.Error("Unable to create new subscription in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create subscription")
	}
	return nil
}

// Update persists changes to an existing subscription
func (m *Manager) Update(ctx context.Context, sub *Subscription) error {
	result := m.db.WithContext(ctx).Save(sub)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update subscription")
	}
	return nil
}

// GetByID will return the subscription with the given id, or nil if none
// exists
func (m *Manager) GetByID(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	result := m.db.WithContext(ctx).First(&sub, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription by id")
	}
	return &sub, nil
}

// ListByUser returns all of the user's subscriptions, newest first
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	results := make([]Subscription, 0, 2)
	result := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// HasCurrent reports whether the user already has an ACTIVE or TRIAL
// subscription
func (m *Manager) HasCurrent(ctx context.Context, userID string) (bool, error) {
	var count int64
	result := m.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ? AND status IN ?", userID, []Status{StatusActive, StatusTrial}).
		Count(&count)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return false, extErrors.Wrap(result.Error, "Cannot check current subscription")
	}
	return count > 0, nil
}

// MarkExpired flips current subscriptions whose period has lapsed to EXPIRED
// and returns how many were flipped. Used by the periodic expiry scan.
func (m *Manager) MarkExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := m.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("status IN ? AND end_date < ?", []Status{StatusActive, StatusTrial}, cutoff).
		Update("status", StatusExpired)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot mark subscriptions expired")
	}
	return result.RowsAffected, nil
}
