package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/orgball2608/comment-pulse/internal/adapters"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/ratelimit"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
	"github.com/orgball2608/comment-pulse/pkg/retry"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	requestTimeout  = 30 * time.Second
	moreBatchSize   = 100
)

var submissionIDRe = regexp.MustCompile(`/comments/([A-Za-z0-9_]+)`)

// Adapter fetches a Reddit submission and its full comment tree via the
// OAuth API. The app-only bearer token comes from a client-credentials
// exchange and is cached by the underlying token source for the
// adapter's lifetime.
type Adapter struct {
	logger    logger.Logger
	client    *http.Client
	pool      ratelimit.Pool
	baseURL   string
	userAgent string
	maxMore   int
	pacer     *ratelimit.Pacer
	haveCreds bool
}

var _ adapters.SourceAdapter = (*Adapter)(nil)

func New(cfg *config.Config, log logger.Logger, pool ratelimit.Pool) *Adapter {
	a := &Adapter{
		logger:    log.WithComponent("RedditAdapter"),
		pool:      pool,
		baseURL:   defaultBaseURL,
		userAgent: cfg.Reddit.UserAgent,
		maxMore:   cfg.Reddit.MaxMoreExpansions,
		pacer:     ratelimit.NewPacer(10),
	}

	if cfg.Reddit.ClientID == "" || cfg.Reddit.ClientSecret == "" {
		return a
	}
	a.haveCreds = true

	conf := &clientcredentials.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		TokenURL:     defaultTokenURL,
	}

	a.client = conf.Client(context.Background())
	a.client.Timeout = requestTimeout
	return a
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformReddit
}

// ExtractSubmissionID pulls the submission id from the path segment
// following "comments/".
func ExtractSubmissionID(rawURL string) (string, error) {
	m := submissionIDRe.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return "", apperrors.UnsupportedURL(rawURL)
	}
	return m[1], nil
}

func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*domain.IngestResult, error) {
	id, err := ExtractSubmissionID(rawURL)
	if err != nil {
		return nil, err
	}

	if !a.haveCreds {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "reddit credentials missing")
	}

	submission, comments, more, err := a.fetchThread(ctx, id)
	if err != nil {
		return nil, err
	}

	expanded, err := a.expandMore(ctx, id, more)
	if err != nil {
		// The tree we already have is still valid; log and return it.
		a.logger.Warn("Expanding more-comments placeholders failed", "submission", id, "error", err)
	}
	comments = append(comments, expanded...)

	post := domain.Post{
		ID:        submission.ID,
		Author:    authorOrDeleted(submission.Author),
		Text:      submission.Selftext,
		Timestamp: isoFromUnix(submission.CreatedUTC),
	}
	if isImageURL(submission.URL) {
		post.PhotoURL = submission.URL
	}

	// Avatar lookup is best-effort: swallow-and-empty on any failure.
	if submission.Author != "" && submission.Author != "[deleted]" {
		post.Avatar = a.fetchAvatar(ctx, submission.Author)
	}

	return &domain.IngestResult{
		Platform:  domain.PlatformReddit,
		SourceURL: rawURL,
		Post:      post,
		Comments:  domain.FilterEmptyComments(comments),
	}, nil
}

// fetchThread returns the submission, the flattened comment tree in
// pagination order, and the ids of unexpanded "more" placeholders.
func (a *Adapter) fetchThread(ctx context.Context, id string) (*submissionData, []domain.Comment, []string, error) {
	var payload []listing
	endpoint := fmt.Sprintf("%s/comments/%s?limit=500&raw_json=1", a.baseURL, id)
	if err := a.getJSON(ctx, "RedditThread", endpoint, &payload); err != nil {
		return nil, nil, nil, err
	}
	if len(payload) < 2 || len(payload[0].Data.Children) == 0 {
		return nil, nil, nil, apperrors.Wrapf(apperrors.ErrNotFound, "reddit submission %s", id)
	}

	var submission submissionData
	if err := json.Unmarshal(payload[0].Data.Children[0].Data, &submission); err != nil {
		return nil, nil, nil, apperrors.Wrap(err, "decode reddit submission")
	}

	comments, more := flattenTree(payload[1].Data.Children)
	return &submission, comments, more, nil
}

// expandMore resolves "more comments" placeholders through
// /api/morechildren. Expansion is bounded: at most maxMore API calls,
// a deliberate cap on arbitrarily deep threads.
func (a *Adapter) expandMore(ctx context.Context, submissionID string, pending []string) ([]domain.Comment, error) {
	var out []domain.Comment

	for calls := 0; len(pending) > 0 && calls < a.maxMore; calls++ {
		if err := a.pacer.Wait(ctx); err != nil {
			return out, err
		}

		batch := pending
		if len(batch) > moreBatchSize {
			batch = batch[:moreBatchSize]
		}
		pending = pending[len(batch):]

		endpoint := fmt.Sprintf(
			"%s/api/morechildren?api_type=json&raw_json=1&link_id=t3_%s&children=%s",
			a.baseURL, submissionID, url.QueryEscape(strings.Join(batch, ",")),
		)

		var payload moreChildrenResponse
		if err := a.getJSON(ctx, "RedditMoreChildren", endpoint, &payload); err != nil {
			return out, err
		}

		comments, more := flattenTree(payload.JSON.Data.Things)
		out = append(out, comments...)
		pending = append(pending, more...)
	}

	if len(pending) > 0 {
		a.logger.Debug("More-comments expansion cap reached", "submission", submissionID, "remaining", len(pending))
	}
	return out, nil
}

func (a *Adapter) fetchAvatar(ctx context.Context, username string) string {
	var about struct {
		Data struct {
			IconImg string `json:"icon_img"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/user/%s/about?raw_json=1", a.baseURL, url.PathEscape(username))
	if err := a.getJSON(ctx, "RedditUserAbout", endpoint, &about); err != nil {
		a.logger.Debug("Avatar lookup failed", "username", username, "error", err)
		return ""
	}
	return html.UnescapeString(about.Data.IconImg)
}

// getJSON performs one authenticated GET with retries. The source
// permit is held only for the duration of each round-trip, never
// across backoff waits.
func (a *Adapter) getJSON(ctx context.Context, name, endpoint string, v any) error {
	operation := func() error {
		return a.pool.WithPermit(ctx, string(domain.PlatformReddit), func() error {
			return a.doRequest(ctx, endpoint, v)
		})
	}

	err := retry.Do(ctx, a.logger, name, operation, retry.DefaultConfig())
	if err != nil && !apperrors.IsNotFound(err) && !apperrors.IsSourceUnavailable(err) {
		return &apperrors.Error{Message: err.Error(), Err: apperrors.ErrSourceUnavailable}
	}
	return err
}

func (a *Adapter) doRequest(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(apperrors.Wrapf(apperrors.ErrNotFound, "reddit: %s", endpoint))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("reddit: status %d", resp.StatusCode)
	default:
		return retry.Permanent(apperrors.Wrapf(apperrors.ErrSourceUnavailable, "reddit: status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return retry.Permanent(apperrors.Wrap(err, "decode reddit response"))
	}
	return nil
}

func authorOrDeleted(author string) string {
	if author == "" || author == "[deleted]" {
		return "deleted"
	}
	return author
}

func isoFromUnix(sec float64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}

func isImageURL(u string) bool {
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}
