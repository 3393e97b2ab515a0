package order

import (
	"context"
	"errors"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles payment order persistence
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for payment orders
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&PaymentOrder{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize order.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create persists a new payment order
func (m *Manager) Create(ctx context.Context, o *PaymentOrder) error {
	result := m.db.WithContext(ctx).Create(o)
	if result.Error != nil {
		m.logger.Error("Unable to create new payment order in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create payment order")
	}
	return nil
}

// Update persists changes to an existing payment order
func (m *Manager) Update(ctx context.Context, o *PaymentOrder) error {
	result := m.db.WithContext(ctx).Save(o)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update payment order")
	}
	return nil
}

// GetByExternalID will return the payment order with the given client-facing
// reference, or nil if none exists
func (m *Manager) GetByExternalID(ctx context.Context, externalID string) (*PaymentOrder, error) {
	var o PaymentOrder
	result := m.db.WithContext(ctx).First(&o, "external_id = ?", externalID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get payment order")
	}
	return &o, nil
}

// ListByUser returns the user's payment orders, newest first
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]PaymentOrder, error) {
	results := make([]PaymentOrder, 0, 5)
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
