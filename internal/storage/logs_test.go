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

func TestStats_WindowMatchesDailyBuckets(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	ctx := context.Background()
	store := NewLogStore(db)

	user := &models.User{
		Name:         "Stats",
		Email:        "stats@example.com",
		PasswordHash: "x",
		Plan:         models.PlanFree,
		IsActive:     true,
	}
	require.NoError(t, NewUserStore(db).Create(ctx, user))

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	key := &models.APIKey{
		Key:             models.NewOpaqueKey(),
		Name:            "key",
		UserID:          user.ID,
		IsActive:        true,
		RequestsResetAt: now,
	}
	require.NoError(t, NewKeyStore(db).Create(ctx, key))

	toxic := true
	for _, created := range []time.Time{
		now,                    // today
		now.AddDate(0, 0, -29), // oldest bucketed day
		now.AddDate(0, 0, -30), // outside the window
	} {
		log := &models.RequestLog{
			APIKeyID:   key.ID,
			UserID:     user.ID,
			Endpoint:   "/api/moderation/analyze",
			HTTPMethod: "POST",
			IsToxic:    &toxic,
			CreatedAt:  created,
		}
		require.NoError(t, store.Create(ctx, log))
	}

	stats, err := store.Stats(ctx, user.ID, now)
	require.NoError(t, err)

	// The monthly total covers exactly the 30 bucketed days.
	assert.Equal(t, 2, stats.RequestsThisMonth)
	assert.Equal(t, 1, stats.RequestsToday)
	require.Len(t, stats.Last30Days, 30)

	var bucketed int
	for _, day := range stats.Last30Days {
		bucketed += day.Requests
	}
	assert.Equal(t, stats.RequestsThisMonth, bucketed)
	assert.Equal(t, now.Truncate(24*time.Hour).AddDate(0, 0, -29), stats.Last30Days[0].Date)
}
