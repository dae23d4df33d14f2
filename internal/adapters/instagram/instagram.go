package instagram

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/orgball2608/comment-pulse/internal/adapters"
	"github.com/orgball2608/comment-pulse/internal/browser"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

// Extraction profile for the Instagram post page. Instagram's web
// client paginates comments through the same GraphQL shape as
// Facebook, distinguished by its own friendly-name header.
var profile = browser.Profile{
	Platform:       domain.PlatformInstagram,
	AuthorSelector: `span[class*="x1i10hfl"]`,
	TextSelector:   `span[class="xt0psk2"]`,
	ImageSelector:  `div[role="presentation"] img`,
	ImageAttr:      "src",
	AvatarSelector: `img[class*="xnz67gz"]`,
	AvatarAttr:     "src",

	ScrollContainerSelector: `div[class*="x5yr21d"]`,

	RequestMethod:     "POST",
	RequestURLPrefix:  "https://www.instagram.com/graphql/query",
	FriendlyHeader:    "x-fb-friendly-name",
	FriendlyHeaderSub: "PolarisPostCommentsPaginationQuery",
}

type commentExtractor interface {
	Extract(ctx context.Context, postURL string, profile browser.Profile) (*browser.Header, []domain.Comment, error)
}

// Adapter scrapes an Instagram post through the shared browser session.
type Adapter struct {
	logger    logger.Logger
	extractor commentExtractor
}

var _ adapters.SourceAdapter = (*Adapter)(nil)

func New(extractor *browser.Extractor, log logger.Logger) *Adapter {
	return &Adapter{
		logger:    log.WithComponent("InstagramAdapter"),
		extractor: extractor,
	}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformInstagram
}

func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*domain.IngestResult, error) {
	postID, err := ExtractShortcode(rawURL)
	if err != nil {
		return nil, err
	}

	header, comments, err := a.extractor.Extract(ctx, rawURL, profile)
	if err != nil {
		return nil, err
	}

	return &domain.IngestResult{
		Platform:  domain.PlatformInstagram,
		SourceURL: rawURL,
		Post: domain.Post{
			ID:        postID,
			Author:    header.Author,
			Text:      header.Text,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Avatar:    header.ProfileImg,
			PhotoURL:  header.PostImage,
		},
		Comments: domain.FilterEmptyComments(comments),
	}, nil
}

// ExtractShortcode pulls the media shortcode from /p/{code}/ or
// /reel/{code}/ URLs.
func ExtractShortcode(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(parsed.Hostname(), "instagram.com") {
		return "", apperrors.UnsupportedURL(rawURL)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && (parts[0] == "p" || parts[0] == "reel") && parts[1] != "" {
		return parts[1], nil
	}
	return "", apperrors.UnsupportedURL(rawURL)
}
