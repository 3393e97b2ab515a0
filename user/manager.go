package user

import (
	"context"
	"errors"

	"github.com/miragespace/subpay/apperror"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Users
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for users
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize user.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create persists a new user. Emails are globally unique.
func (m *Manager) Create(ctx context.Context, u *User) error {
	existing, err := m.GetByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperror.Conflict("user with this email already exists")
	}
	if len(u.ID) == 0 {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Active = true
	result := m.db.WithContext(ctx).Create(u)
	if result.Error != nil {
		m.logger.Error("Unable to create new user in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create user")
	}
	return nil
}

// GetByID will return the user with the given id, or nil if none exists
func (m *Manager) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	result := m.db.WithContext(ctx).First(&u, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get user by id")
	}
	return &u, nil
}

// GetByEmail will return the user with the given email, or nil if none exists
func (m *Manager) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	result := m.db.WithContext(ctx).First(&u, "email = ?", email)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get user by email")
	}
	return &u, nil
}

// Update persists profile changes
func (m *Manager) Update(ctx context.Context, u *User) error {
	result := m.db.WithContext(ctx).Save(u)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot update user")
	}
	return nil
}
