package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegiscore/aegis/internal/models"
	"github.com/aegiscore/aegis/internal/storage"
	"github.com/aegiscore/aegis/internal/webhook"
)

// fakePrincipal drives the pipeline without a real credential scheme.
type fakePrincipal struct {
	allowed bool
	limit   int
	usage   int
	audit   *AuditInfo
}

func (p *fakePrincipal) CheckQuota(ctx context.Context) (bool, int, error) {
	return p.allowed, p.limit, nil
}

func (p *fakePrincipal) RecordUsage(ctx context.Context) error {
	p.usage++
	return nil
}

func (p *fakePrincipal) Audit() *AuditInfo { return p.audit }

// failingClassifier always errors, forcing the fallback path.
type failingClassifier struct{}

func (failingClassifier) Classify(ctx context.Context, text, language string, allScores bool) (*Score, error) {
	return nil, errors.New("upstream unavailable")
}

func newTestService(t *testing.T, classifier Classifier) (*Service, *storage.LogStore, func()) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	logs := storage.NewLogStore(db)
	dispatcher := webhook.NewDispatcher(storage.NewWebhookStore(db), zap.NewNop(), 1, 16)
	svc := NewService(classifier, logs, dispatcher, DefaultThreshold, zap.NewNop())
	return svc, logs, dispatcher.Close
}

func allowAll() *fakePrincipal {
	return &fakePrincipal{allowed: true}
}

func TestAnalyze_EmptyText(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	_, err := svc.Analyze(context.Background(), allowAll(), Request{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestAnalyze_ThresholdInclusive(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()
	ctx := context.Background()

	// The fallback scorer yields exactly 0.85; a threshold of 0.85 must
	// still flag the text because the comparison is inclusive.
	boundary := 0.85
	result, err := svc.Analyze(ctx, allowAll(), Request{Text: "I hate this", Threshold: &boundary})
	require.NoError(t, err)
	assert.True(t, result.IsToxic)
	assert.Equal(t, 0.85, result.ToxicityScore)

	above := 0.86
	result, err = svc.Analyze(ctx, allowAll(), Request{Text: "I hate this", Threshold: &above})
	require.NoError(t, err)
	assert.False(t, result.IsToxic)
}

func TestAnalyze_DefaultThreshold(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()
	ctx := context.Background()

	result, err := svc.Analyze(ctx, allowAll(), Request{Text: "you idiot"})
	require.NoError(t, err)
	assert.True(t, result.IsToxic)

	result, err = svc.Analyze(ctx, allowAll(), Request{Text: "nice weather"})
	require.NoError(t, err)
	assert.False(t, result.IsToxic)
	assert.Equal(t, 0.15, result.ToxicityScore)
}

func TestAnalyze_ClassifierFailureUsesFallback(t *testing.T) {
	svc, _, done := newTestService(t, failingClassifier{})
	defer done()

	result, err := svc.Analyze(context.Background(), allowAll(), Request{Text: "I hate this"})
	require.NoError(t, err)
	assert.Equal(t, 0.85, result.ToxicityScore)
}

func TestAnalyze_QuotaDenied(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	denied := &fakePrincipal{allowed: false, limit: 100}
	_, err := svc.Analyze(context.Background(), denied, Request{Text: "anything"})

	var quotaErr *QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 100, quotaErr.Limit)
	assert.Equal(t, 0, denied.usage, "denied requests must not be charged")
}

func TestAnalyze_ChargesUsage(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	p := allowAll()
	_, err := svc.Analyze(context.Background(), p, Request{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.usage)
}

func TestAnalyze_AnonymousLeavesNoTrail(t *testing.T) {
	svc, logs, done := newTestService(t, nil)
	defer done()
	ctx := context.Background()

	_, err := svc.Analyze(ctx, allowAll(), Request{Text: "I hate this"})
	require.NoError(t, err)

	recent, err := logs.Recent(ctx, "any-user", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAnalyze_TruncatesEcho(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	result, err := svc.Analyze(context.Background(), allowAll(), Request{Text: string(long)})
	require.NoError(t, err)
	assert.Len(t, result.AnalyzedText, 103) // 100 chars plus ellipsis
}

func TestAnalyze_AllScores(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	result, err := svc.Analyze(context.Background(), allowAll(), Request{Text: "hello", IncludeAllScores: true})
	require.NoError(t, err)
	assert.Len(t, result.AllScores, 6)
	assert.Equal(t, 0.15, result.AllScores["TOXICITY"])
}

func TestAnalyzeBatch_Validation(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()
	ctx := context.Background()

	_, err := svc.AnalyzeBatch(ctx, allowAll(), BatchRequest{})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "text"
	}
	denied := &fakePrincipal{allowed: false, limit: 100}
	_, err = svc.AnalyzeBatch(ctx, denied, BatchRequest{Texts: texts})
	// Size is rejected before the quota is even consulted.
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestAnalyzeBatch_ChargesPerText(t *testing.T) {
	svc, logs, done := newTestService(t, nil)
	defer done()
	ctx := context.Background()

	p := allowAll()
	result, err := svc.AnalyzeBatch(ctx, p, BatchRequest{
		Texts: []string{"hello", "I hate this", "kill it", "fine"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalAnalyzed)
	assert.Equal(t, 2, result.ToxicCount)
	assert.Equal(t, 4, p.usage)
	assert.Len(t, result.Results, 4)
	assert.False(t, result.Results[0].IsToxic)
	assert.True(t, result.Results[1].IsToxic)

	// Batch mode writes no audit entries.
	recent, err := logs.Recent(ctx, "any-user", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAnalyzeBatch_QuotaCheckedOnce(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	denied := &fakePrincipal{allowed: false, limit: 1000}
	_, err := svc.AnalyzeBatch(context.Background(), denied, BatchRequest{Texts: []string{"a", "b"}})

	var quotaErr *QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 1000, quotaErr.Limit)
}

func TestAnalyze_QuotaDeniedFiresRateLimitWebhook(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	ctx := context.Background()

	received := make(chan []byte, 1)
	subscriber := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		rw.WriteHeader(http.StatusOK)
	}))
	defer subscriber.Close()

	owner := &models.User{
		Name:         "Owner",
		Email:        "owner@example.com",
		PasswordHash: "x",
		Plan:         models.PlanFree,
		IsActive:     true,
	}
	require.NoError(t, storage.NewUserStore(db).Create(ctx, owner))

	dispatcher := webhook.NewDispatcher(storage.NewWebhookStore(db), zap.NewNop(), 1, 16)
	defer dispatcher.Close()
	_, err = dispatcher.Create(ctx, owner.ID, "limits", subscriber.URL, "", models.EventRateLimitReached)
	require.NoError(t, err)

	svc := NewService(nil, storage.NewLogStore(db), dispatcher, DefaultThreshold, zap.NewNop())
	denied := &fakePrincipal{
		allowed: false,
		limit:   100,
		audit: &AuditInfo{
			UserID:     owner.ID,
			APIKeyID:   "key-1",
			APIKeyName: "production",
		},
	}

	_, err = svc.Analyze(ctx, denied, Request{Text: "anything"})
	var quotaErr *QuotaError
	require.ErrorAs(t, err, &quotaErr)

	select {
	case body := <-received:
		var env webhook.Envelope
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, models.EventRateLimitReached.String(), env.Event)
		data := env.Data.(map[string]interface{})
		assert.Equal(t, "key-1", data["api_key_id"])
		assert.Equal(t, "production", data["api_key_name"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected a rate-limit webhook delivery")
	}
}

func TestAnalyze_Timestamp(t *testing.T) {
	svc, _, done := newTestService(t, nil)
	defer done()

	before := time.Now().UTC()
	result, err := svc.Analyze(context.Background(), allowAll(), Request{Text: "hello"})
	require.NoError(t, err)
	assert.False(t, result.Timestamp.Before(before))
}
