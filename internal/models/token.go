package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenTTL is the lifetime of an anonymous access token.
const TokenTTL = 30 * time.Minute

// MaxTokensPerIP caps simultaneously active tokens per client address.
const MaxTokensPerIP = 2

// AccessToken is a short-lived, IP-scoped anonymous credential. Expired
// tokens are soft-deactivated, never deleted.
type AccessToken struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	Token        string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	IPAddress    string     `gorm:"size:45;index:idx_tokens_ip_active,priority:1;not null" json:"ip_address"`
	IsActive     bool       `gorm:"not null;default:true;index:idx_tokens_ip_active,priority:2" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	RequestCount int        `gorm:"not null;default:0" json:"request_count"`
}

func (t *AccessToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// NewAccessToken builds an unsaved token for the given address with a
// fresh opaque string and a TTL-based expiry.
func NewAccessToken(ipAddress string, now time.Time) *AccessToken {
	return &AccessToken{
		Token:     NewOpaqueKey(),
		IPAddress: ipAddress,
		IsActive:  true,
		ExpiresAt: now.Add(TokenTTL),
	}
}

// Expired reports whether the token's lifetime has passed.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
