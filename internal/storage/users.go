package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/aegiscore/aegis/internal/models"
)

// UserStore handles user persistence.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. The email is lowercased before writing so the
// unique index is effectively case-insensitive.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	return s.db.WithContext(ctx).Create(user).Error
}

// FindByEmail looks a user up by email, case-insensitively. Returns
// (nil, nil) when absent.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns (nil, nil) when the user does not exist.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Save persists in-place changes to an existing user.
func (s *UserStore) Save(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// Delete removes the user row; the foreign-key constraints cascade to
// the user's keys, request logs and webhooks.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}
