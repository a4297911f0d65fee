// Package token manages the anonymous access scheme: short-lived,
// IP-scoped tokens with a hard cap of two active tokens per address.
package token

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/storage"
)

var (
	// ErrTokenLimit means the address already holds the maximum number
	// of active tokens.
	ErrTokenLimit = errors.New("active token limit reached for this address")
	// ErrInvalidToken covers unknown and expired tokens alike; expiry
	// is terminal, never renewable.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Service issues, validates and accounts anonymous access tokens.
type Service struct {
	tokens *storage.TokenStore
	logger *zap.Logger
}

func NewService(tokens *storage.TokenStore, logger *zap.Logger) *Service {
	return &Service{tokens: tokens, logger: logger}
}

// Issue creates a new token for the address, first sweeping expired
// tokens so stale rows never count against the per-IP cap.
func (s *Service) Issue(ctx context.Context, ipAddress string) (*models.AccessToken, error) {
	now := time.Now().UTC()

	swept, err := s.tokens.DeactivateExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	if swept > 0 {
		s.logger.Info("Deactivated expired tokens", zap.Int64("count", swept))
	}

	active, err := s.tokens.CountActiveByIP(ctx, ipAddress, now)
	if err != nil {
		return nil, err
	}
	if active >= models.MaxTokensPerIP {
		s.logger.Warn("Token issuance denied, per-IP limit reached",
			zap.String("ip", ipAddress),
			zap.Int("limit", models.MaxTokensPerIP))
		return nil, ErrTokenLimit
	}

	t := models.NewAccessToken(ipAddress, now)
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("Access token issued", zap.String("ip", ipAddress))
	return t, nil
}

// Validate resolves a token string to its record. An expired token is
// marked inactive on the way out, so a second call fails the same way.
func (s *Service) Validate(ctx context.Context, tokenString string) (*models.AccessToken, error) {
	t, err := s.tokens.FindActive(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}

	if t.Expired(time.Now().UTC()) {
		if err := s.tokens.Deactivate(ctx, t.ID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidToken
	}
	return t, nil
}

// RecordUsage bumps the token's request counter and last-used stamp.
func (s *Service) RecordUsage(ctx context.Context, tokenID string) error {
	return s.tokens.IncrementUsage(ctx, tokenID, time.Now().UTC())
}
