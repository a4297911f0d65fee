package apikey

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/quota"
	"github.com/aegiscore/aegis/internal/storage"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewService(storage.NewKeyStore(db), zap.NewNop()), db
}

func newTestUser(t *testing.T, db *gorm.DB, plan models.PlanType) *models.User {
	t.Helper()
	user := &models.User{
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: "x",
		Plan:         plan,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreate_PlanKeyLimit(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	for i := 0; i < models.PlanFree.MaxAPIKeys(); i++ {
		_, err := svc.Create(ctx, user, "key", nil)
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, user, "one too many", nil)
	assert.ErrorIs(t, err, ErrKeyLimit)
}

func TestCreate_RevokedKeysStillCount(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	var last *models.APIKey
	for i := 0; i < models.PlanFree.MaxAPIKeys(); i++ {
		key, err := svc.Create(ctx, user, "key", nil)
		require.NoError(t, err)
		last = key
	}

	require.NoError(t, svc.Revoke(ctx, user.ID, last.ID))

	_, err := svc.Create(ctx, user, "still over", nil)
	assert.ErrorIs(t, err, ErrKeyLimit)
}

func TestValidate_UnknownAndRevoked(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "aegis_nosuchkey")
	assert.ErrorIs(t, err, ErrInvalidKey)

	key, err := svc.Create(ctx, user, "key", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, user.ID, key.ID))

	_, err = svc.Validate(ctx, key.Key)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestValidate_ExpiredKey(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	key, err := svc.Create(ctx, user, "expired", &past)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, key.Key)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestValidate_LazyDailyReset(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	key, err := svc.Create(ctx, user, "key", nil)
	require.NoError(t, err)

	// Simulate a key last used days ago with a stale counter.
	stale := time.Now().UTC().AddDate(0, 0, -3)
	require.NoError(t, db.Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Updates(map[string]interface{}{
			"requests_today":    42,
			"requests_reset_at": stale,
		}).Error)

	got, err := svc.Validate(ctx, key.Key)
	require.NoError(t, err)

	// One jump to the next boundary, not three catch-up resets.
	assert.Equal(t, 0, got.RequestsToday)
	assert.Equal(t, quota.NextReset(time.Now().UTC()), got.RequestsResetAt.UTC())
}

func TestValidate_CounterKeptBeforeBoundary(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	key, err := svc.Create(ctx, user, "key", nil)
	require.NoError(t, err)
	require.NoError(t, svc.IncrementUsage(ctx, key.ID))

	got, err := svc.Validate(ctx, key.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RequestsToday)
}

func TestCheckQuota_Boundary(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	key, err := svc.Create(ctx, user, "key", nil)
	require.NoError(t, err)

	limit := models.PlanFree.DailyLimit()
	require.NoError(t, db.Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Update("requests_today", limit-1).Error)

	allowed, err := svc.CheckQuota(ctx, key, user)
	require.NoError(t, err)
	assert.True(t, allowed, "request number limit should still be allowed")

	require.NoError(t, svc.IncrementUsage(ctx, key.ID))

	allowed, err = svc.CheckQuota(ctx, key, user)
	require.NoError(t, err)
	assert.False(t, allowed, "request past the limit should be denied")
}

func TestCheckQuota_ReadsFreshCounter(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	key, err := svc.Create(ctx, user, "key", nil)
	require.NoError(t, err)

	// The in-memory copy is stale; the store holds the real count.
	key.RequestsToday = 0
	require.NoError(t, db.Model(&models.APIKey{}).
		Where("id = ?", key.ID).
		Update("requests_today", models.PlanFree.DailyLimit()).Error)

	allowed, err := svc.CheckQuota(ctx, key, user)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRevokeAndDelete_Ownership(t *testing.T) {
	svc, db := newTestService(t)
	user := newTestUser(t, db, models.PlanFree)
	ctx := context.Background()

	key, err := svc.Create(ctx, user, "key", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Revoke(ctx, "someone-else", key.ID), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "someone-else", key.ID), ErrNotFound)

	require.NoError(t, svc.Delete(ctx, user.ID, key.ID))
	assert.ErrorIs(t, svc.Delete(ctx, user.ID, key.ID), ErrNotFound)
}
