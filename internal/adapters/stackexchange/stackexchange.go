package stackexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orgball2608/comment-pulse/internal/adapters"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/ratelimit"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/htmltext"
	"github.com/orgball2608/comment-pulse/pkg/logger"
	"github.com/orgball2608/comment-pulse/pkg/retry"
)

const (
	defaultBaseURL = "https://api.stackexchange.com/2.3"
	defaultSite    = "stackoverflow"
	requestTimeout = 30 * time.Second
)

// Adapter fetches a question and its answers from the StackExchange
// API, flattening answers into canonical comments sorted by votes
// descending.
type Adapter struct {
	logger  logger.Logger
	client  *http.Client
	pool    ratelimit.Pool
	baseURL string
	key     string
}

var _ adapters.SourceAdapter = (*Adapter)(nil)

func New(cfg *config.Config, log logger.Logger, pool ratelimit.Pool) *Adapter {
	return &Adapter{
		logger:  log.WithComponent("StackExchangeAdapter"),
		client:  &http.Client{Timeout: requestTimeout},
		pool:    pool,
		baseURL: defaultBaseURL,
		key:     cfg.StackExchange.Key,
	}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformStackExchange
}

// ExtractQuestionID pulls the numeric question id from the
// /questions/{id}/... path shape.
func ExtractQuestionID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", apperrors.UnsupportedURL(rawURL)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "questions" {
		return "", apperrors.UnsupportedURL(rawURL)
	}

	id := strings.SplitN(parts[1], "#", 2)[0]
	if _, err := strconv.Atoi(id); err != nil {
		return "", apperrors.UnsupportedURL(rawURL)
	}
	return id, nil
}

// SiteFromURL derives the API site slug from the URL's subdomain,
// defaulting to stackoverflow.
func SiteFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return defaultSite
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	if slug, _, ok := strings.Cut(host, "."); ok && slug != "" {
		return slug
	}
	return defaultSite
}

func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*domain.IngestResult, error) {
	questionID, err := ExtractQuestionID(rawURL)
	if err != nil {
		return nil, err
	}
	site := SiteFromURL(rawURL)

	question, err := a.fetchQuestion(ctx, questionID, site)
	if err != nil {
		return nil, err
	}

	// If required metadata is missing, try exactly once more, then fall
	// back to best-effort empty fields. Never a hard failure here.
	if question.incomplete() {
		refreshed, err := a.fetchQuestion(ctx, questionID, site)
		if err == nil {
			question.merge(refreshed)
		}
	}

	answers, err := a.fetchAnswers(ctx, questionID, site)
	if err != nil {
		a.logger.Warn("Fetching answers failed, returning question only", "question", questionID, "error", err)
		answers = nil
	}

	return &domain.IngestResult{
		Platform:  domain.PlatformStackExchange,
		SourceURL: rawURL,
		Post: domain.Post{
			ID:        question.id(questionID),
			Author:    question.Owner.DisplayName,
			Text:      htmltext.Strip(question.Body),
			Timestamp: isoFromUnix(question.CreationDate),
			Avatar:    question.Owner.ProfileImage,
		},
		Comments: domain.FilterEmptyComments(answers),
	}, nil
}

func (a *Adapter) fetchQuestion(ctx context.Context, questionID, site string) (*questionItem, error) {
	endpoint := fmt.Sprintf("%s/questions/%s?%s", a.baseURL, questionID, a.params(site, "activity"))

	var payload wrapper[questionItem]
	if err := a.getJSON(ctx, "StackExchangeQuestion", endpoint, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "stackexchange question %s on %s", questionID, site)
	}
	return &payload.Items[0], nil
}

// fetchAnswers returns answers sorted by vote descending. Answers whose
// body strips to nothing are treated as non-existent.
func (a *Adapter) fetchAnswers(ctx context.Context, questionID, site string) ([]domain.Comment, error) {
	endpoint := fmt.Sprintf("%s/questions/%s/answers?%s", a.baseURL, questionID, a.params(site, "votes"))

	var payload wrapper[answerItem]
	if err := a.getJSON(ctx, "StackExchangeAnswers", endpoint, &payload); err != nil {
		return nil, err
	}

	var comments []domain.Comment
	for _, item := range payload.Items {
		text := htmltext.Strip(item.Body)
		if text == "" {
			continue
		}
		id := strconv.FormatInt(item.AnswerID, 10)
		if item.AnswerID == 0 {
			id = uuid.NewString()
		}
		comments = append(comments, domain.Comment{
			ID:        id,
			Author:    orUnknown(item.Owner.DisplayName),
			Text:      text,
			Timestamp: isoFromUnix(item.CreationDate),
			AuthorImg: item.Owner.ProfileImage,
		})
	}
	return comments, nil
}

func (a *Adapter) params(site, sort string) string {
	v := url.Values{}
	v.Set("order", "desc")
	v.Set("sort", sort)
	v.Set("site", site)
	v.Set("filter", "withbody")
	if a.key != "" {
		v.Set("key", a.key)
	}
	return v.Encode()
}

func (a *Adapter) getJSON(ctx context.Context, name, endpoint string, v any) error {
	operation := func() error {
		return a.pool.WithPermit(ctx, string(domain.PlatformStackExchange), func() error {
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

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(apperrors.Wrapf(apperrors.ErrNotFound, "stackexchange: %s", endpoint))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("stackexchange: status %d", resp.StatusCode)
	default:
		return retry.Permanent(apperrors.Wrapf(apperrors.ErrSourceUnavailable, "stackexchange: status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return retry.Permanent(apperrors.Wrap(err, "decode stackexchange response"))
	}
	return nil
}

type wrapper[T any] struct {
	Items []T `json:"items"`
}

type owner struct {
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image"`
}

type questionItem struct {
	QuestionID   int64  `json:"question_id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	CreationDate int64  `json:"creation_date"`
	Owner        owner  `json:"owner"`
}

func (q *questionItem) incomplete() bool {
	return q.QuestionID == 0 || q.Title == "" || q.Owner.DisplayName == "" ||
		strings.TrimSpace(q.Body) == "" || q.CreationDate == 0
}

// merge fills missing fields from a refreshed copy.
func (q *questionItem) merge(fresh *questionItem) {
	if q.QuestionID == 0 {
		q.QuestionID = fresh.QuestionID
	}
	if q.Title == "" {
		q.Title = fresh.Title
	}
	if q.Owner.DisplayName == "" {
		q.Owner.DisplayName = fresh.Owner.DisplayName
	}
	if q.Owner.ProfileImage == "" {
		q.Owner.ProfileImage = fresh.Owner.ProfileImage
	}
	if strings.TrimSpace(q.Body) == "" {
		q.Body = fresh.Body
	}
	if q.CreationDate == 0 {
		q.CreationDate = fresh.CreationDate
	}
}

func (q *questionItem) id(fallback string) string {
	if q.QuestionID != 0 {
		return strconv.FormatInt(q.QuestionID, 10)
	}
	return fallback
}

type answerItem struct {
	AnswerID     int64  `json:"answer_id"`
	Body         string `json:"body"`
	CreationDate int64  `json:"creation_date"`
	Owner        owner  `json:"owner"`
}

func isoFromUnix(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
