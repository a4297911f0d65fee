package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aegiscore/aegis/internal/models"
)

// WebhookStore handles webhook persistence, including the delivery
// bookkeeping the dispatcher writes back.
type WebhookStore struct {
	db *gorm.DB
}

func NewWebhookStore(db *gorm.DB) *WebhookStore {
	return &WebhookStore{db: db}
}

func (s *WebhookStore) Create(ctx context.Context, webhook *models.Webhook) error {
	return s.db.WithContext(ctx).Create(webhook).Error
}

// ListByUser returns the user's webhooks, newest first.
func (s *WebhookStore) ListByUser(ctx context.Context, userID string) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&webhooks).Error
	return webhooks, err
}

// ListSubscribed returns the user's active webhooks whose event mask
// includes the full event bit.
func (s *WebhookStore) ListSubscribed(ctx context.Context, userID string, event models.WebhookEvent) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND (events & ?) = ?", userID, true, int(event), int(event)).
		Find(&webhooks).Error
	return webhooks, err
}

// Delete removes a webhook owned by userID, reporting whether a row
// matched.
func (s *WebhookStore) Delete(ctx context.Context, userID, webhookID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", webhookID, userID).
		Delete(&models.Webhook{})
	return res.RowsAffected > 0, res.Error
}

// SetActive flips the active flag on a webhook owned by userID.
func (s *WebhookStore) SetActive(ctx context.Context, userID, webhookID string, active bool) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ? AND user_id = ?", webhookID, userID).
		Update("is_active", active)
	return res.RowsAffected > 0, res.Error
}

// MarkSuccess records a delivered webhook: failure streak over, trigger
// time stamped.
func (s *WebhookStore) MarkSuccess(ctx context.Context, webhookID string, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ?", webhookID).
		Updates(map[string]interface{}{
			"failure_count":     0,
			"last_triggered_at": now,
		}).Error
}

// MarkFailure bumps the consecutive-failure counter and deactivates the
// webhook once it reaches the limit. Returns the updated count.
func (s *WebhookStore) MarkFailure(ctx context.Context, webhookID string, now time.Time) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Webhook{}).
			Where("id = ?", webhookID).
			Updates(map[string]interface{}{
				"failure_count":     gorm.Expr("failure_count + 1"),
				"last_triggered_at": now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Webhook{}).
			Where("id = ?", webhookID).
			Pluck("failure_count", &count).Error; err != nil {
			return err
		}
		if count >= models.WebhookFailureLimit {
			return tx.Model(&models.Webhook{}).
				Where("id = ?", webhookID).
				Update("is_active", false).Error
		}
		return nil
	})
	return count, err
}
