package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestLog is an immutable audit record written once per moderation
// call made with an API key. Anonymous token traffic is not logged.
type RequestLog struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	APIKeyID       string    `gorm:"type:uuid;index;not null" json:"api_key_id"`
	APIKey         *APIKey   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID         string    `gorm:"type:uuid;index;not null" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Endpoint       string    `gorm:"size:50;not null" json:"endpoint"`
	HTTPMethod     string    `gorm:"size:10;not null;default:POST" json:"http_method"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	IPAddress      string    `gorm:"size:45" json:"ip_address"`
	UserAgent      string    `gorm:"size:500" json:"user_agent"`
	ToxicityScore  *float64  `json:"toxicity_score"`
	IsToxic        *bool     `json:"is_toxic"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (r *RequestLog) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
