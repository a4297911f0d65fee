// Package apikey manages long-lived user credentials: creation under
// plan key limits, validation with lazy daily rollover, quota checks
// against fresh counters, and ownership-guarded revocation.
package apikey

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/quota"
	"github.com/aegiscore/aegis/internal/storage"
)

var (
	// ErrInvalidKey covers unknown, revoked and expired keys alike.
	ErrInvalidKey = errors.New("invalid or expired API key")
	// ErrKeyLimit means the user already holds the plan's maximum
	// number of keys, revoked ones included.
	ErrKeyLimit = errors.New("API key limit reached for plan")
	// ErrNotFound is returned when a key does not exist or does not
	// belong to the caller; the two cases are deliberately
	// indistinguishable.
	ErrNotFound = errors.New("API key not found")
)

// Service manages API keys and their daily usage accounting.
type Service struct {
	keys   *storage.KeyStore
	logger *zap.Logger
}

func NewService(keys *storage.KeyStore, logger *zap.Logger) *Service {
	return &Service{keys: keys, logger: logger}
}

// Create mints a key for the user, enforcing the plan's key-count
// limit. The returned record carries the only full copy of the key
// string the caller will ever see.
func (s *Service) Create(ctx context.Context, user *models.User, name string, expiresAt *time.Time) (*models.APIKey, error) {
	count, err := s.keys.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if count >= int64(user.Plan.MaxAPIKeys()) {
		return nil, ErrKeyLimit
	}

	key := &models.APIKey{
		Key:             models.NewOpaqueKey(),
		Name:            name,
		UserID:          user.ID,
		IsActive:        true,
		ExpiresAt:       expiresAt,
		RequestsResetAt: quota.NextReset(time.Now()),
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("API key created",
		zap.String("user_id", user.ID),
		zap.String("key_name", name))
	return key, nil
}

// Validate resolves a key string to its record with the owning user
// attached. A due daily counter is reset here, on the read path: the
// counter goes to zero and the boundary jumps to the next UTC midnight
// in one step, no matter how many days have passed.
func (s *Service) Validate(ctx context.Context, keyString string) (*models.APIKey, error) {
	key, err := s.keys.FindActiveByKey(ctx, keyString)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidKey
	}

	now := time.Now().UTC()
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		return nil, ErrInvalidKey
	}

	if quota.Due(key.RequestsResetAt, now) {
		resetAt := quota.NextReset(now)
		if err := s.keys.ResetDailyCounter(ctx, key.ID, resetAt); err != nil {
			return nil, err
		}
		key.RequestsToday = 0
		key.RequestsResetAt = resetAt
	}
	return key, nil
}

// CheckQuota reports whether the key may perform another request under
// its owner's plan. The counter is re-read from storage so a decision
// never rides on a stale in-memory copy; the check is still not atomic
// with the subsequent increment, which is an accepted race.
func (s *Service) CheckQuota(ctx context.Context, key *models.APIKey, user *models.User) (bool, error) {
	current, err := s.keys.CurrentUsage(ctx, key.ID)
	if err != nil {
		return false, err
	}
	key.RequestsToday = current
	return current < user.Plan.DailyLimit(), nil
}

// IncrementUsage records one billable unit of work against the key.
func (s *Service) IncrementUsage(ctx context.Context, keyID string) error {
	return s.keys.IncrementUsage(ctx, keyID, time.Now().UTC())
}

// List returns the user's keys for display; callers mask the key
// strings before serializing.
func (s *Service) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	return s.keys.ListByUser(ctx, userID)
}

// Revoke disables a key the caller owns, keeping the row.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	ok, err := s.keys.Deactivate(ctx, userID, keyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.logger.Info("API key revoked", zap.String("key_id", keyID))
	return nil
}

// Delete hard-removes a key the caller owns along with its request
// logs.
func (s *Service) Delete(ctx context.Context, userID, keyID string) error {
	ok, err := s.keys.Delete(ctx, userID, keyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.logger.Info("API key deleted", zap.String("key_id", keyID))
	return nil
}
