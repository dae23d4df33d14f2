package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

// Client talks to the external analysis service over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   logger.Logger
}

var _ Analyzer = (*Client)(nil)

func NewClient(cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		endpoint: cfg.Analysis.Endpoint,
		apiKey:   cfg.Analysis.APIKey,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   log.WithComponent("AnalysisClient"),
	}
}

func (c *Client) ClassifySentiment(ctx context.Context, texts []string) (*domain.SentimentResult, error) {
	if len(texts) == 0 {
		return &domain.SentimentResult{
			Labels: []string{},
			Counts: map[string]int{
				domain.SentimentPositive: 0,
				domain.SentimentNeutral:  0,
				domain.SentimentNegative: 0,
			},
		}, nil
	}

	var result domain.SentimentResult
	if err := c.post(ctx, "/sentiment", map[string]any{"texts": texts}, &result); err != nil {
		return nil, err
	}
	if len(result.Labels) != len(texts) {
		return nil, apperrors.Wrapf(apperrors.ErrSourceUnavailable,
			"sentiment service returned %d labels for %d texts", len(result.Labels), len(texts))
	}
	return &result, nil
}

func (c *Client) ClusterTopics(ctx context.Context, texts []string) ([]domain.Topic, error) {
	if len(texts) == 0 {
		return []domain.Topic{}, nil
	}

	var resp struct {
		Results []domain.Topic `json:"results"`
	}
	if err := c.post(ctx, "/topics", map[string]any{"texts": texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, apperrors.Wrap(apperrors.ErrSourceUnavailable, "topic service returned no results field")
	}
	return resp.Results, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "marshal analysis payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, "build analysis request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Analysis service returned non-200", "Path", path, "Status", resp.Status)
		return apperrors.Wrapf(apperrors.ErrSourceUnavailable, "analysis service %s: %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, "decode analysis response")
	}
	return nil
}
