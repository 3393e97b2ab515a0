package invoice

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

// Manager handles invoice persistence
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for invoices
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Invoice{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize invoice.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create persists a new invoice
func (m *Manager) Create(ctx context.Context, inv *Invoice) error {
	result := m.db.WithContext(ctx).Create(inv)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "duplicate key") {
			return apperror.Conflict("invoice number already exists")
		}
		m.logger.Error("Unable to create new invoice in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create invoice")
	}
	return nil
}

// Update persists changes to an existing invoice
func (m *Manager) Update(ctx context.Context, inv *Invoice) error {
	result := m.db.WithContext(ctx).Save(inv)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update invoice")
	}
	return nil
}

// GetByID will return the invoice with the given id, or nil if none exists
func (m *Manager) GetByID(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	result := m.db.WithContext(ctx).First(&inv, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get invoice by id")
	}
	return &inv, nil
}

// ListByUser returns the user's invoices, newest first
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Invoice, error) {
	results := make([]Invoice, 0, 10)
	result := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("invoice_date desc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListBySubscription returns the invoices billed against a subscription,
// newest first
func (m *Manager) ListBySubscription(ctx context.Context, subscriptionID string) ([]Invoice, error) {
	results := make([]Invoice, 0, 10)
	result := m.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("invoice_date desc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListPendingDueBefore returns PENDING invoices whose due date has passed.
// Used by the overdue sweep.
func (m *Manager) ListPendingDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error) {
	results := make([]Invoice, 0, 10)
	result := m.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", StatusPending, cutoff).
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}
