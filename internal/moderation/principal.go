package moderation

import (
	"context"

	"github.com/aegiscore/aegis/internal/apikey"
	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/token"
)

// Principal is a resolved caller identity with a quota-check
// capability. The orchestrator treats API keys and anonymous tokens
// uniformly through this interface; tokens simply never deny.
type Principal interface {
	// CheckQuota reports whether the principal may perform another
	// billable request, and the daily limit that applies when it may
	// not.
	CheckQuota(ctx context.Context) (allowed bool, limit int, err error)
	// RecordUsage charges one billable unit of work.
	RecordUsage(ctx context.Context) error
	// Audit returns the identity attached to audit logs and webhook
	// payloads, or nil for anonymous principals, which leave no trail.
	Audit() *AuditInfo
}

// AuditInfo identifies a key-backed caller for logging and webhooks.
type AuditInfo struct {
	UserID     string
	APIKeyID   string
	APIKeyName string
	IPAddress  string
	UserAgent  string
	Endpoint   string
}

// KeyPrincipal is the API-key credential scheme: plan-bound daily
// quota, audit trail, webhook events.
type KeyPrincipal struct {
	Key  *models.APIKey
	User *models.User

	Keys      *apikey.Service
	IPAddress string
	UserAgent string
	Endpoint  string
}

func (p *KeyPrincipal) CheckQuota(ctx context.Context) (bool, int, error) {
	allowed, err := p.Keys.CheckQuota(ctx, p.Key, p.User)
	if err != nil {
		return false, 0, err
	}
	return allowed, p.User.Plan.DailyLimit(), nil
}

func (p *KeyPrincipal) RecordUsage(ctx context.Context) error {
	return p.Keys.IncrementUsage(ctx, p.Key.ID)
}

func (p *KeyPrincipal) Audit() *AuditInfo {
	return &AuditInfo{
		UserID:     p.User.ID,
		APIKeyID:   p.Key.ID,
		APIKeyName: p.Key.Name,
		IPAddress:  p.IPAddress,
		UserAgent:  p.UserAgent,
		Endpoint:   p.Endpoint,
	}
}

// TokenPrincipal is the anonymous scheme: no daily quota (only a
// lifetime and a per-IP issuance cap, both enforced elsewhere), no
// audit trail, no webhooks.
type TokenPrincipal struct {
	Token  *models.AccessToken
	Tokens *token.Service
}

func (p *TokenPrincipal) CheckQuota(ctx context.Context) (bool, int, error) {
	return true, 0, nil
}

func (p *TokenPrincipal) RecordUsage(ctx context.Context) error {
	return p.Tokens.RecordUsage(ctx, p.Token.ID)
}

func (p *TokenPrincipal) Audit() *AuditInfo { return nil }
