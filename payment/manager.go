package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/miragespace/subpay/apperror"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles payment persistence
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for payments
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Payment{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize payment.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create persists a new payment
func (m *Manager) Create(ctx context.Context, p *Payment) error {
	result := m.db.WithContext(ctx).Create(p)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "duplicate key") {
			return apperror.Conflict("transaction id already exists")
		}
		m.logger.Error("Unable to create new payment in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create payment")
	}
	return nil
}

// Update persists changes to an existing payment
func (m *Manager) Update(ctx context.Context, p *Payment) error {
	result := m.db.WithContext(ctx).Save(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update payment")
	}
	return nil
}

// GetByID will return the payment with the given id, or nil if none exists
func (m *Manager) GetByID(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	result := m.db.WithContext(ctx).First(&p, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get payment by id")
	}
	return &p, nil
}

// ListByUser returns the user's payments, newest first
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	results := make([]Payment, 0, 10)
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

// ListByInvoice returns every payment attempt against an invoice, oldest
// first
func (m *Manager) ListByInvoice(ctx context.Context, invoiceID string) ([]Payment, error) {
	results := make([]Payment, 0, 3)
	result := m.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}
