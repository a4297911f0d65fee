// Package webhook manages user-registered endpoints and delivers
// moderation events to them. Delivery is fire-and-forget: triggers
// enqueue onto a bounded worker pool and return immediately, so a slow
// or failing endpoint never delays the request that raised the event.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/storage"
)

// ErrNotFound is returned when a webhook does not exist or is not owned
// by the caller.
var ErrNotFound = errors.New("webhook not found")

const (
	// DeliveryTimeout bounds each outbound POST, independent of the
	// triggering request's lifecycle.
	DeliveryTimeout = 10 * time.Second

	signatureHeader = "X-Aegis-Signature"
	eventHeader     = "X-Aegis-Event"
)

type delivery struct {
	webhook models.Webhook
	event   models.WebhookEvent
	payload interface{}
}

// Envelope is the JSON body POSTed to subscriber endpoints.
type Envelope struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Dispatcher owns webhook records and the delivery worker pool.
type Dispatcher struct {
	store  *storage.WebhookStore
	client *http.Client
	logger *zap.Logger

	queue chan delivery
	wg    sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of queueSize
// pending deliveries.
func NewDispatcher(store *storage.WebhookStore, logger *zap.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	d := &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: DeliveryTimeout},
		logger: logger,
		queue:  make(chan delivery, queueSize),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Close stops accepting deliveries and waits for in-flight ones.
func (d *Dispatcher) Close() {
	close(d.queue)
	d.wg.Wait()
}

// Create registers a webhook for the user.
func (d *Dispatcher) Create(ctx context.Context, userID, name, url, secret string, events models.WebhookEvent) (*models.Webhook, error) {
	if events == models.EventNone {
		events = models.EventToxicContent
	}
	w := &models.Webhook{
		UserID:   userID,
		Name:     name,
		URL:      url,
		Secret:   secret,
		IsActive: true,
		Events:   events,
	}
	if err := d.store.Create(ctx, w); err != nil {
		return nil, err
	}
	d.logger.Info("Webhook created",
		zap.String("user_id", userID),
		zap.String("name", name))
	return w, nil
}

// List returns the user's webhooks.
func (d *Dispatcher) List(ctx context.Context, userID string) ([]models.Webhook, error) {
	return d.store.ListByUser(ctx, userID)
}

// Delete removes a webhook the caller owns.
func (d *Dispatcher) Delete(ctx context.Context, userID, webhookID string) error {
	ok, err := d.store.Delete(ctx, userID, webhookID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Enable reactivates a webhook the dispatcher disabled after repeated
// failures. The failure streak survives until the next successful
// delivery resets it.
func (d *Dispatcher) Enable(ctx context.Context, userID, webhookID string) error {
	ok, err := d.store.SetActive(ctx, userID, webhookID, true)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Trigger enqueues one delivery per active webhook of the user whose
// subscription includes the event. It never blocks: when the queue is
// full the delivery is dropped and logged.
func (d *Dispatcher) Trigger(ctx context.Context, userID string, event models.WebhookEvent, payload interface{}) {
	webhooks, err := d.store.ListSubscribed(ctx, userID, event)
	if err != nil {
		d.logger.Error("Failed to load webhooks for event",
			zap.String("user_id", userID),
			zap.String("event", event.String()),
			zap.Error(err))
		return
	}

	for _, w := range webhooks {
		select {
		case d.queue <- delivery{webhook: w, event: event, payload: payload}:
		default:
			d.logger.Warn("Webhook queue full, dropping delivery",
				zap.String("webhook_id", w.ID),
				zap.String("event", event.String()))
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

// deliver runs detached from the triggering request, so bookkeeping
// writes use a background context.
func (d *Dispatcher) deliver(job delivery) {
	ctx := context.Background()
	now := time.Now().UTC()

	body, err := json.Marshal(Envelope{
		Event:     job.event.String(),
		Timestamp: now,
		Data:      job.payload,
	})
	if err != nil {
		d.logger.Error("Failed to serialize webhook payload",
			zap.String("webhook_id", job.webhook.ID),
			zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.webhook.URL, bytes.NewReader(body))
	if err != nil {
		d.recordFailure(ctx, job.webhook)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventHeader, job.event.String())
	if job.webhook.Secret != "" {
		req.Header.Set(signatureHeader, Sign(body, job.webhook.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("Webhook delivery failed",
			zap.String("webhook_id", job.webhook.ID),
			zap.String("url", job.webhook.URL),
			zap.Error(err))
		d.recordFailure(ctx, job.webhook)
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn("Webhook delivery rejected",
			zap.String("webhook_id", job.webhook.ID),
			zap.Int("status", resp.StatusCode))
		d.recordFailure(ctx, job.webhook)
		return
	}

	if err := d.store.MarkSuccess(ctx, job.webhook.ID, time.Now().UTC()); err != nil {
		d.logger.Error("Failed to record webhook success",
			zap.String("webhook_id", job.webhook.ID),
			zap.Error(err))
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, w models.Webhook) {
	count, err := d.store.MarkFailure(ctx, w.ID, time.Now().UTC())
	if err != nil {
		d.logger.Error("Failed to record webhook failure",
			zap.String("webhook_id", w.ID),
			zap.Error(err))
		return
	}
	if count >= models.WebhookFailureLimit {
		d.logger.Warn("Webhook disabled after repeated failures",
			zap.String("webhook_id", w.ID),
			zap.Int("failures", count))
	}
}

// Sign computes the delivery signature for a body: a lowercase hex
// HMAC-SHA256 of the payload under the shared secret, prefixed with the
// algorithm name.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
