package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent is a bitmask of moderation events a webhook subscribes to.
type WebhookEvent int

const (
	EventNone             WebhookEvent = 0
	EventToxicContent     WebhookEvent = 1
	EventHighToxicity     WebhookEvent = 2
	EventRateLimitReached WebhookEvent = 4
	EventAll                           = EventToxicContent | EventHighToxicity | EventRateLimitReached
)

// Has reports whether the subscription includes the given event. The
// full event bit must be present, overlap is not enough.
func (e WebhookEvent) Has(event WebhookEvent) bool {
	return e&event == event
}

func (e WebhookEvent) String() string {
	switch e {
	case EventToxicContent:
		return "ToxicContent"
	case EventHighToxicity:
		return "HighToxicity"
	case EventRateLimitReached:
		return "RateLimitReached"
	case EventAll:
		return "All"
	case EventNone:
		return "None"
	default:
		return "Unknown"
	}
}

// WebhookFailureLimit is the consecutive-failure count at which a
// webhook is deactivated until its owner re-enables it.
const WebhookFailureLimit = 10

// Webhook is a user-registered endpoint notified of moderation events.
// Only the dispatcher mutates the trigger timestamp, failure counter and
// active flag.
type Webhook struct {
	ID              string       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string       `gorm:"type:uuid;index;not null" json:"user_id"`
	User            *User        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name            string       `gorm:"size:100;not null" json:"name"`
	URL             string       `gorm:"size:500;not null" json:"url"`
	Secret          string       `gorm:"size:64" json:"-"`
	IsActive        bool         `gorm:"not null;default:true" json:"is_active"`
	Events          WebhookEvent `gorm:"not null;default:1" json:"events"`
	CreatedAt       time.Time    `json:"created_at"`
	LastTriggeredAt *time.Time   `json:"last_triggered_at"`
	FailureCount    int          `gorm:"not null;default:0" json:"failure_count"`
}

func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
