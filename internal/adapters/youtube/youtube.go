package youtube

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/orgball2608/comment-pulse/internal/adapters"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/ratelimit"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

const pageSize = 100

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?(?:.*&)?v=([\w-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be/([\w-]{11})`),
}

// Adapter fetches video metadata and top-level comment threads through
// the YouTube Data API v3.
type Adapter struct {
	logger      logger.Logger
	svc         *youtube.Service
	pool        ratelimit.Pool
	maxComments int
	pacer       *ratelimit.Pacer
}

var _ adapters.SourceAdapter = (*Adapter)(nil)

func New(cfg *config.Config, log logger.Logger, pool ratelimit.Pool) (*Adapter, error) {
	a := &Adapter{
		logger:      log.WithComponent("YouTubeAdapter"),
		pool:        pool,
		maxComments: cfg.YouTube.MaxComments,
		pacer:       ratelimit.NewPacer(10),
	}

	if cfg.YouTube.APIKey == "" {
		return a, nil
	}

	svc, err := youtube.NewService(context.Background(), option.WithAPIKey(cfg.YouTube.APIKey))
	if err != nil {
		return nil, apperrors.Wrap(err, "create youtube service")
	}
	a.svc = svc
	return a, nil
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformYouTube
}

// ExtractVideoID accepts the watch?v= and youtu.be/ URL shapes.
func ExtractVideoID(rawURL string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); len(m) > 1 {
			return m[1], nil
		}
	}
	return "", apperrors.UnsupportedURL(rawURL)
}

func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*domain.IngestResult, error) {
	videoID, err := ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	if a.svc == nil {
		return nil, apperrors.Wrap(apperrors.ErrConfiguration, "youtube api key missing")
	}

	snippet, err := a.fetchVideoSnippet(ctx, videoID)
	if err != nil {
		return nil, err
	}

	post := domain.Post{
		ID:        videoID,
		Author:    orUnknown(snippet.ChannelTitle),
		Text:      snippet.Description,
		Timestamp: snippet.PublishedAt,
	}

	if snippet.ChannelId != "" {
		post.Avatar = a.fetchChannelAvatar(ctx, snippet.ChannelId)
	}

	comments, err := a.fetchComments(ctx, videoID)
	if err != nil {
		return nil, err
	}

	return &domain.IngestResult{
		Platform:  domain.PlatformYouTube,
		SourceURL: rawURL,
		Post:      post,
		Comments:  domain.FilterEmptyComments(comments),
	}, nil
}

func (a *Adapter) fetchVideoSnippet(ctx context.Context, videoID string) (*youtube.VideoSnippet, error) {
	var resp *youtube.VideoListResponse
	err := a.withPermit(ctx, func() error {
		var err error
		resp, err = a.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, mapAPIError(err, "youtube video lookup")
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "youtube video %s", videoID)
	}

	snippet := resp.Items[0].Snippet
	if snippet.Title == "" || snippet.PublishedAt == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "youtube video %s missing metadata", videoID)
	}
	return snippet, nil
}

// fetchComments pages the comment-thread list 100 at a time following
// nextPageToken until the token is absent or the cap is reached.
// Disabled comments are a valid zero-comment success, not a failure.
func (a *Adapter) fetchComments(ctx context.Context, videoID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	pageToken := ""

	for len(comments) < a.maxComments {
		call := a.svc.CommentThreads.List([]string{"snippet"}).
			VideoId(videoID).
			TextFormat("plainText").
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *youtube.CommentThreadListResponse
		err := a.withPermit(ctx, func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			if isCommentsDisabled(err) {
				a.logger.Debug("Comments disabled for video", "video", videoID)
				return nil, nil
			}
			return nil, mapAPIError(err, "youtube comment threads")
		}

		for _, item := range resp.Items {
			if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
				continue
			}
			top := item.Snippet.TopLevelComment
			comments = append(comments, domain.Comment{
				ID:        top.Id,
				Author:    orUnknown(top.Snippet.AuthorDisplayName),
				Text:      top.Snippet.TextDisplay,
				Timestamp: top.Snippet.PublishedAt,
				AuthorImg: top.Snippet.AuthorProfileImageUrl,
			})
			if len(comments) >= a.maxComments {
				break
			}
		}

		if resp.NextPageToken == "" || len(comments) >= a.maxComments {
			break
		}
		pageToken = resp.NextPageToken

		if err := a.pacer.Wait(ctx); err != nil {
			return comments, err
		}
	}

	return comments, nil
}

// fetchChannelAvatar resolves the channel avatar choosing the highest
// resolution thumbnail present. Best-effort: empty on any failure.
func (a *Adapter) fetchChannelAvatar(ctx context.Context, channelID string) string {
	var resp *youtube.ChannelListResponse
	err := a.withPermit(ctx, func() error {
		var err error
		resp, err = a.svc.Channels.List([]string{"snippet"}).Id(channelID).Context(ctx).Do()
		return err
	})
	if err != nil || len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		a.logger.Debug("Channel avatar lookup failed", "channel", channelID, "error", err)
		return ""
	}

	thumbs := resp.Items[0].Snippet.Thumbnails
	if thumbs == nil {
		return ""
	}
	for _, t := range []*youtube.Thumbnail{thumbs.Maxres, thumbs.High, thumbs.Medium, thumbs.Default} {
		if t != nil && t.Url != "" {
			return t.Url
		}
	}
	return ""
}

// withPermit bounds concurrent API calls; one permit per round-trip.
func (a *Adapter) withPermit(ctx context.Context, fn func() error) error {
	return a.pool.WithPermit(ctx, string(domain.PlatformYouTube), fn)
}

func mapAPIError(err error, msg string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound {
			return apperrors.Wrap(apperrors.ErrNotFound, msg)
		}
	}
	return &apperrors.Error{Message: msg + ": " + err.Error(), Err: apperrors.ErrSourceUnavailable}
}

func isCommentsDisabled(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusForbidden
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
