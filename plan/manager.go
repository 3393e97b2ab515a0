package plan

import (
	"context"
	"errors"

	"github.com/miragespace/subpay/apperror"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the plan catalog. The billing engines consume it read-only
// via their Catalog interfaces; the mutating operations back the admin API.
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for plans
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Plan{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize plan.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// GetByID will return the plan with the given id, or nil if none exists
func (m *Manager) GetByID(ctx context.Context, id string) (*Plan, error) {
	var p Plan
	result := m.db.WithContext(ctx).First(&p, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get plan by id")
	}
	return &p, nil
}

// ExistsByName reports whether a plan with the given name exists
func (m *Manager) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	result := m.db.WithContext(ctx).Model(&Plan{}).Where("name = ?", name).Count(&count)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return false, extErrors.Wrap(result.Error, "Cannot check plan name")
	}
	return count > 0, nil
}

// ListActive returns the purchasable plans in display order
func (m *Manager) ListActive(ctx context.Context) ([]Plan, error) {
	results := make([]Plan, 0, 4)
	result := m.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListFeatured returns the active plans flagged for the marketing page
func (m *Manager) ListFeatured(ctx context.Context) ([]Plan, error) {
	results := make([]Plan, 0, 2)
	result := m.db.WithContext(ctx).
		Where("active = ? AND featured = ?", true, true).
		Order("sort_order asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// List returns all plans, including inactive ones, for the admin API
func (m *Manager) List(ctx context.Context, limit, offset int) ([]Plan, error) {
	results := make([]Plan, 0, 10)
	baseQuery := m.db.WithContext(ctx).Order("sort_order asc")
	if limit > 0 {
		baseQuery = baseQuery.Limit(limit).Offset(offset)
	}
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// Create persists a new plan. Plan names are globally unique.
func (m *Manager) Create(ctx context.Context, p *Plan) error {
	exists, err := m.ExistsByName(ctx, p.Name)
	if err != nil {
		return err
	}
	if exists {
		return apperror.Conflict("plan with this name already exists")
	}
	if len(p.ID) == 0 {
		p.ID = uuid.New().String()
	}
	if !p.BillingCycle.Valid() {
		return apperror.Validation("unknown billing cycle")
	}
	result := m.db.WithContext(ctx).Create(p)
	if result.Error != nil {
		m.logger.Error("Unable to create new plan in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create plan")
	}
	return nil
}

// Update persists changes to an existing plan
func (m *Manager) Update(ctx context.Context, p *Plan) error {
	result := m.db.WithContext(ctx).Save(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update plan")
	}
	return nil
}

// SetActive flips the purchasable flag on a plan
func (m *Manager) SetActive(ctx context.Context, id string, active bool) (*Plan, error) {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NotFound("plan", "id", id)
	}
	p.Active = active
	if err := m.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a plan from the catalog. Historical subscriptions and
// invoices keep their denormalized copy of the plan facts, so deleting a
// plan never corrupts billing history.
func (m *Manager) Delete(ctx context.Context, id string) error {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return apperror.NotFound("plan", "id", id)
	}
	result := m.db.WithContext(ctx).Delete(p)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot delete plan")
	}
	return nil
}
