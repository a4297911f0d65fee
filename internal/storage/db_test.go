package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegiscore/aegis/internal/models"
)

func TestOpen_UserDeleteCascades(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	ctx := context.Background()

	users := NewUserStore(db)
	user := &models.User{
		Name:         "Doomed",
		Email:        "doomed@example.com",
		PasswordHash: "x",
		Plan:         models.PlanFree,
		IsActive:     true,
	}
	require.NoError(t, users.Create(ctx, user))

	key := &models.APIKey{
		Key:             models.NewOpaqueKey(),
		Name:            "key",
		UserID:          user.ID,
		IsActive:        true,
		RequestsResetAt: time.Now().UTC(),
	}
	require.NoError(t, NewKeyStore(db).Create(ctx, key))
	require.NoError(t, NewLogStore(db).Create(ctx, &models.RequestLog{
		APIKeyID:   key.ID,
		UserID:     user.ID,
		Endpoint:   "/api/moderation/analyze",
		HTTPMethod: "POST",
	}))
	require.NoError(t, NewWebhookStore(db).Create(ctx, &models.Webhook{
		UserID:   user.ID,
		Name:     "hook",
		URL:      "https://example.com/hook",
		IsActive: true,
		Events:   models.EventToxicContent,
	}))

	require.NoError(t, users.Delete(ctx, user.ID))

	var keys, logs, webhooks int64
	require.NoError(t, db.Model(&models.APIKey{}).Where("user_id = ?", user.ID).Count(&keys).Error)
	require.NoError(t, db.Model(&models.RequestLog{}).Where("user_id = ?", user.ID).Count(&logs).Error)
	require.NoError(t, db.Model(&models.Webhook{}).Where("user_id = ?", user.ID).Count(&webhooks).Error)

	assert.Zero(t, keys, "api keys should cascade with their user")
	assert.Zero(t, logs, "request logs should cascade with their user")
	assert.Zero(t, webhooks, "webhooks should cascade with their user")
}
