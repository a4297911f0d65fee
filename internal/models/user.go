package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that owns API keys, request logs and webhooks.
// Emails are stored lowercase; the unique index is the real guard
// against duplicate registration.
type User struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Plan         PlanType   `gorm:"not null;default:0" json:"plan"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`

	APIKeys     []APIKey     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RequestLogs []RequestLog `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Webhooks    []Webhook    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
