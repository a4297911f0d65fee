// Package moderation orchestrates the scoring pipeline: quota check,
// classifier call (with deterministic fallback), audit logging, usage
// accounting and webhook events.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/storage"
	"github.com/aegiscore/aegis/internal/webhook"
)

const (
	// DefaultThreshold is the toxicity cutoff when neither config nor
	// the request override one. The comparison is inclusive.
	DefaultThreshold = 0.7

	// highToxicityThreshold promotes a toxic verdict to the
	// HighToxicity event.
	highToxicityThreshold = 0.9

	// MaxBatchSize caps a batch request.
	MaxBatchSize = 100

	// DefaultLanguage is the classifier language hint.
	DefaultLanguage = "pt"

	echoLimit = 100
)

var (
	// ErrEmptyText rejects empty or whitespace-only input.
	ErrEmptyText = errors.New("text is required")
	// ErrEmptyBatch rejects a batch with no texts.
	ErrEmptyBatch = errors.New("texts array is required")
	// ErrBatchTooLarge rejects a batch over MaxBatchSize texts.
	ErrBatchTooLarge = fmt.Errorf("maximum %d texts per batch", MaxBatchSize)
)

// QuotaError is the daily-limit denial; it carries the limit so the
// response body can include it.
type QuotaError struct {
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily rate limit of %d exceeded", e.Limit)
}

// Request is one text to analyze with optional knobs.
type Request struct {
	Text             string   `json:"text" binding:"required"`
	Language         string   `json:"language"`
	IncludeAllScores bool     `json:"include_all_scores"`
	Threshold        *float64 `json:"toxicity_threshold"`
}

// Result is a single-text verdict.
type Result struct {
	IsToxic       bool               `json:"is_toxic"`
	ToxicityScore float64            `json:"toxicity_score"`
	AllScores     map[string]float64 `json:"all_scores,omitempty"`
	AnalyzedText  string             `json:"analyzed_text"`
	Timestamp     time.Time          `json:"timestamp"`
}

// BatchRequest is up to MaxBatchSize texts analyzed sequentially.
type BatchRequest struct {
	Texts     []string `json:"texts" binding:"required"`
	Language  string   `json:"language"`
	Threshold *float64 `json:"toxicity_threshold"`
}

// BatchItem is one entry of a batch verdict.
type BatchItem struct {
	Text          string  `json:"text"`
	IsToxic       bool    `json:"is_toxic"`
	ToxicityScore float64 `json:"toxicity_score"`
}

// BatchResult aggregates a batch verdict.
type BatchResult struct {
	Results       []BatchItem `json:"results"`
	TotalAnalyzed int         `json:"total_analyzed"`
	ToxicCount    int         `json:"toxic_count"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Service runs the moderation pipeline for any Principal.
type Service struct {
	classifier Classifier
	logs       *storage.LogStore
	webhooks   *webhook.Dispatcher
	threshold  float64
	logger     *zap.Logger
}

// NewService builds the orchestrator. classifier may be nil when no
// remote API key is configured; the fallback scorer then handles every
// request.
func NewService(classifier Classifier, logs *storage.LogStore, webhooks *webhook.Dispatcher, threshold float64, logger *zap.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		classifier: classifier,
		logs:       logs,
		webhooks:   webhooks,
		threshold:  threshold,
		logger:     logger,
	}
}

// Analyze runs the full single-text pipeline. Credential and quota
// failures are terminal; classifier failures are absorbed by the
// fallback scorer so a verdict is always produced.
func (s *Service) Analyze(ctx context.Context, p Principal, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if err := s.enforceQuota(ctx, p); err != nil {
		return nil, err
	}

	start := time.Now()
	score := s.classify(ctx, req.Text, s.language(req.Language), req.IncludeAllScores)
	threshold := s.effectiveThreshold(req.Threshold)
	result := s.buildResult(req.Text, score, threshold)

	if audit := p.Audit(); audit != nil {
		s.writeLog(ctx, audit, result, time.Since(start))
	}

	if err := p.RecordUsage(ctx); err != nil {
		s.logger.Error("Failed to record usage", zap.Error(err))
	}

	if result.IsToxic {
		if audit := p.Audit(); audit != nil {
			event := models.EventToxicContent
			if result.ToxicityScore >= highToxicityThreshold {
				event = models.EventHighToxicity
			}
			s.webhooks.Trigger(ctx, audit.UserID, event, map[string]interface{}{
				"text":           req.Text,
				"toxicity_score": result.ToxicityScore,
				"analyzed_at":    result.Timestamp,
			})
		}
	}

	return result, nil
}

// AnalyzeBatch scores up to MaxBatchSize texts sequentially. Usage is
// charged per text, but no audit entries are written and no per-item
// webhooks fire; those side effects belong to the single-text path.
func (s *Service) AnalyzeBatch(ctx context.Context, p Principal, req BatchRequest) (*BatchResult, error) {
	if len(req.Texts) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	if err := s.enforceQuota(ctx, p); err != nil {
		return nil, err
	}

	language := s.language(req.Language)
	threshold := s.effectiveThreshold(req.Threshold)

	out := &BatchResult{
		Results:       make([]BatchItem, 0, len(req.Texts)),
		TotalAnalyzed: len(req.Texts),
		Timestamp:     time.Now().UTC(),
	}
	for _, text := range req.Texts {
		score := s.classify(ctx, text, language, false)
		item := BatchItem{
			Text:          text,
			ToxicityScore: round4(score.Toxicity),
			IsToxic:       round4(score.Toxicity) >= threshold,
		}
		if item.IsToxic {
			out.ToxicCount++
		}
		out.Results = append(out.Results, item)

		if err := p.RecordUsage(ctx); err != nil {
			s.logger.Error("Failed to record usage", zap.Error(err))
		}
	}
	return out, nil
}

// enforceQuota denies over-budget principals, firing the rate-limit
// webhook for key-backed callers before returning the terminal error.
func (s *Service) enforceQuota(ctx context.Context, p Principal) error {
	allowed, limit, err := p.CheckQuota(ctx)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}

	if audit := p.Audit(); audit != nil {
		s.webhooks.Trigger(ctx, audit.UserID, models.EventRateLimitReached, map[string]interface{}{
			"api_key_id":   audit.APIKeyID,
			"api_key_name": audit.APIKeyName,
		})
	}
	return &QuotaError{Limit: limit}
}

// classify asks the remote classifier and falls back to the lexical
// scorer on any failure, or immediately when no classifier is
// configured. Either way the caller gets a verdict.
func (s *Service) classify(ctx context.Context, text, language string, allScores bool) *Score {
	if s.classifier == nil {
		return FallbackScore(text, allScores)
	}

	score, err := s.classifier.Classify(ctx, text, language, allScores)
	if err != nil {
		s.logger.Warn("Classifier unavailable, using fallback scorer", zap.Error(err))
		return FallbackScore(text, allScores)
	}
	return score
}

func (s *Service) buildResult(text string, score *Score, threshold float64) *Result {
	value := round4(score.Toxicity)
	result := &Result{
		IsToxic:       value >= threshold,
		ToxicityScore: value,
		AnalyzedText:  truncate(text, echoLimit),
		Timestamp:     time.Now().UTC(),
	}
	if score.Attributes != nil {
		result.AllScores = make(map[string]float64, len(score.Attributes))
		for name, v := range score.Attributes {
			result.AllScores[name] = round4(v)
		}
	}
	return result
}

func (s *Service) writeLog(ctx context.Context, audit *AuditInfo, result *Result, elapsed time.Duration) {
	entry := &models.RequestLog{
		APIKeyID:       audit.APIKeyID,
		UserID:         audit.UserID,
		Endpoint:       audit.Endpoint,
		HTTPMethod:     http.MethodPost,
		StatusCode:     http.StatusOK,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		IPAddress:      audit.IPAddress,
		UserAgent:      audit.UserAgent,
		ToxicityScore:  &result.ToxicityScore,
		IsToxic:        &result.IsToxic,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write request log", zap.Error(err))
	}
}

func (s *Service) effectiveThreshold(override *float64) float64 {
	if override != nil && *override > 0 && *override <= 1 {
		return *override
	}
	return s.threshold
}

func (s *Service) language(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
