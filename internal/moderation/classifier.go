package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultClassifierURL is the Perspective comment-analysis endpoint.
const DefaultClassifierURL = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

// subAttributes are the extra scores requested when a caller asks for
// the full breakdown.
var subAttributes = []string{
	"SEVERE_TOXICITY",
	"IDENTITY_ATTACK",
	"INSULT",
	"PROFANITY",
	"THREAT",
}

// Score is a classifier verdict: the headline toxicity plus optional
// per-attribute scores, all in [0,1].
type Score struct {
	Toxicity   float64
	Attributes map[string]float64
}

// Classifier scores a text for toxicity.
type Classifier interface {
	Classify(ctx context.Context, text, language string, allScores bool) (*Score, error)
}

// PerspectiveClient calls the remote comment-analysis API.
type PerspectiveClient struct {
	url    string
	apiKey string
	client *http.Client
	logger *zap.Logger
}

func NewPerspectiveClient(apiURL, apiKey string, logger *zap.Logger) *PerspectiveClient {
	if apiURL == "" {
		apiURL = DefaultClassifierURL
	}
	return &PerspectiveClient{
		url:    apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type analyzeRequest struct {
	Comment             analyzeComment      `json:"comment"`
	Languages           []string            `json:"languages"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// Classify POSTs the text to the remote API. Any failure is returned as
// an error for the caller to absorb; this client never invents scores.
func (c *PerspectiveClient) Classify(ctx context.Context, text, language string, allScores bool) (*Score, error) {
	attributes := map[string]struct{}{"TOXICITY": {}}
	if allScores {
		for _, attr := range subAttributes {
			attributes[attr] = struct{}{}
		}
	}

	body, err := json.Marshal(analyzeRequest{
		Comment:             analyzeComment{Text: text},
		Languages:           []string{language},
		RequestedAttributes: attributes,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Calling toxicity classifier", zap.Int("text_len", len(text)))

	endpoint := c.url + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	toxicity, ok := parsed.AttributeScores["TOXICITY"]
	if !ok {
		return nil, fmt.Errorf("classifier response missing TOXICITY score")
	}

	score := &Score{Toxicity: toxicity.SummaryScore.Value}
	if allScores {
		score.Attributes = make(map[string]float64, len(parsed.AttributeScores))
		for name, attr := range parsed.AttributeScores {
			score.Attributes[name] = attr.SummaryScore.Value
		}
	}
	return score, nil
}
