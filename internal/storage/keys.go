package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aegiscore/aegis/internal/models"
)

// KeyStore handles API key persistence. Counter increments and resets
// are expressed as SQL updates so concurrent requests against the same
// key read-modify-write in the database, not in process memory.
type KeyStore struct {
	db *gorm.DB
}

func NewKeyStore(db *gorm.DB) *KeyStore {
	return &KeyStore{db: db}
}

func (s *KeyStore) Create(ctx context.Context, key *models.APIKey) error {
	return s.db.WithContext(ctx).Create(key).Error
}

// FindActiveByKey finds an active key by exact string match with its
// owning user attached. Returns (nil, nil) when absent.
func (s *KeyStore) FindActiveByKey(ctx context.Context, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("key = ? AND is_active = ?", key, true).
		First(&apiKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// ListByUser returns the user's keys, newest first.
func (s *KeyStore) ListByUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

// CountByUser counts all keys the user holds, active or revoked.
func (s *KeyStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// ResetDailyCounter zeroes the rolling counter and stamps the next
// reset boundary.
func (s *KeyStore) ResetDailyCounter(ctx context.Context, keyID string, resetAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Updates(map[string]interface{}{
			"requests_today":    0,
			"requests_reset_at": resetAt,
		}).Error
}

// IncrementUsage bumps the daily counter and stamps last use.
func (s *KeyStore) IncrementUsage(ctx context.Context, keyID string, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Updates(map[string]interface{}{
			"requests_today": gorm.Expr("requests_today + 1"),
			"last_used_at":   now,
		}).Error
}

// CurrentUsage re-reads the persisted daily counter.
func (s *KeyStore) CurrentUsage(ctx context.Context, keyID string) (int, error) {
	var count int
	err := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Pluck("requests_today", &count).Error
	return count, err
}

// Deactivate revokes a key owned by userID. Reports whether a row
// matched; a miss is indistinguishable between "absent" and "not
// yours".
func (s *KeyStore) Deactivate(ctx context.Context, userID, keyID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ? AND user_id = ?", keyID, userID).
		Update("is_active", false)
	return res.RowsAffected > 0, res.Error
}

// Delete hard-removes a key owned by userID along with its request
// logs.
func (s *KeyStore) Delete(ctx context.Context, userID, keyID string) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", keyID, userID).Delete(&models.APIKey{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("api_key_id = ?", keyID).Delete(&models.RequestLog{}).Error
	})
	return deleted, err
}
