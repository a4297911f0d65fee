package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextReset_MidDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 13, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), NextReset(now))
}

func TestNextReset_AtMidnight(t *testing.T) {
	// Exactly midnight still points to the following day.
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), NextReset(now))
}

func TestNextReset_MonthBoundary(t *testing.T) {
	now := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), NextReset(now))
}

func TestNextReset_NonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 UTC+5 is 21:30 UTC the previous day.
	now := time.Date(2024, 3, 15, 2, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), NextReset(now))
}

func TestDue(t *testing.T) {
	resetAt := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	assert.False(t, Due(resetAt, resetAt.Add(-time.Second)))
	assert.True(t, Due(resetAt, resetAt), "boundary is inclusive")
	assert.True(t, Due(resetAt, resetAt.Add(time.Second)))
	assert.True(t, Due(resetAt, resetAt.AddDate(0, 0, 9)), "long gaps still due")
}
