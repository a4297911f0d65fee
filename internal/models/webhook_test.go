package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookEvent_Has(t *testing.T) {
	mask := EventToxicContent | EventRateLimitReached

	assert.True(t, mask.Has(EventToxicContent))
	assert.True(t, mask.Has(EventRateLimitReached))
	assert.False(t, mask.Has(EventHighToxicity))

	assert.True(t, EventAll.Has(EventToxicContent))
	assert.True(t, EventAll.Has(EventHighToxicity))
	assert.True(t, EventAll.Has(EventRateLimitReached))
}

func TestWebhookEvent_String(t *testing.T) {
	assert.Equal(t, "ToxicContent", EventToxicContent.String())
	assert.Equal(t, "HighToxicity", EventHighToxicity.String())
	assert.Equal(t, "RateLimitReached", EventRateLimitReached.String())
}

func TestPlanLimits(t *testing.T) {
	assert.Equal(t, 100, PlanFree.DailyLimit())
	assert.Equal(t, 1000, PlanStarter.DailyLimit())
	assert.Equal(t, 10000, PlanPro.DailyLimit())

	assert.Equal(t, 5, PlanFree.MaxAPIKeys())
	assert.Equal(t, 10, PlanStarter.MaxAPIKeys())
	assert.Equal(t, 10, PlanEnterprise.MaxAPIKeys())
}
