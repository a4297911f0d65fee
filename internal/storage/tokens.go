package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aegiscore/aegis/internal/models"
)

// TokenStore handles anonymous access token persistence.
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Create(ctx context.Context, token *models.AccessToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

// FindActive looks a token up by exact string match among active rows.
// Returns (nil, nil) when absent; expiry is the caller's concern.
func (s *TokenStore) FindActive(ctx context.Context, token string) (*models.AccessToken, error) {
	var t models.AccessToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND is_active = ?", token, true).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeactivateExpired soft-expires every active token whose lifetime has
// passed. Returns how many rows changed.
func (s *TokenStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// Deactivate marks one token inactive.
func (s *TokenStore) Deactivate(ctx context.Context, tokenID string) error {
	return s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("id = ?", tokenID).
		Update("is_active", false).Error
}

// CountActiveByIP counts non-expired active tokens for an address.
func (s *TokenStore) CountActiveByIP(ctx context.Context, ipAddress string, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("ip_address = ? AND is_active = ? AND expires_at > ?", ipAddress, true, now).
		Count(&count).Error
	return count, err
}

// IncrementUsage bumps the request counter and stamps last use.
func (s *TokenStore) IncrementUsage(ctx context.Context, tokenID string, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("id = ?", tokenID).
		Updates(map[string]interface{}{
			"request_count": gorm.Expr("request_count + 1"),
			"last_used_at":  now,
		}).Error
}
