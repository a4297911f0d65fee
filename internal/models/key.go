package models

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KeyPrefix tags every opaque credential issued by this service.
const KeyPrefix = "aegis_"

const opaqueLen = 40

// APIKey is a long-lived, user-scoped credential. The raw key string is
// returned exactly once at creation and shown masked afterwards.
type APIKey struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	Key             string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Name            string     `gorm:"size:100;not null" json:"name"`
	UserID          string     `gorm:"type:uuid;index;not null" json:"user_id"`
	User            *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	RequestsToday   int        `gorm:"not null;default:0" json:"requests_today"`
	RequestsResetAt time.Time  `gorm:"not null" json:"requests_reset_at"`
}

func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

// NewOpaqueKey generates a fresh credential string: the fixed prefix plus
// 40 alphanumeric characters drawn from 256-bit random chunks.
func NewOpaqueKey() string {
	var sb strings.Builder
	for sb.Len() < opaqueLen {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			panic("models: crypto/rand unavailable: " + err.Error())
		}
		enc := base64.RawStdEncoding.EncodeToString(raw)
		enc = strings.NewReplacer("+", "", "/", "").Replace(enc)
		sb.WriteString(enc)
	}
	return KeyPrefix + sb.String()[:opaqueLen]
}

// MaskKey returns a redacted form of a credential for display: the first
// 8 and last 4 characters with the middle elided. Short keys are
// returned as-is.
func MaskKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:8] + "..." + key[len(key)-4:]
}
