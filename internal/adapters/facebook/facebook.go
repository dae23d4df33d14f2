package facebook

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

// Extraction profile for the Facebook post page. The class-chain
// selectors track the current upstream markup and will drift; misses
// surface as ErrSelectorNotFound so the alerting monitor can see them.
var profile = browser.Profile{
	Platform:       domain.PlatformFacebook,
	AuthorSelector: "span.html-span.xdj266r.x14z9mp.xat24cr.x1lziwak.xexx8yu.xyri2b.x18d9i69.x1c1uobl.x1hl2dhg.x16tdsg8.x1vvkbs",
	TextSelector:   "div.xdj266r.x11i5rnm.xat24cr.x1mh8g0r.x1vvkbs.x126k92a",
	ImageSelector:  "img.x168nmei.x13lgxp2.x5pf9jr.xo71vjh.x1ey2m1c.xds687c.x5yr21d.x10l6tqk.x17qophe.x13vifvy.xh8yej3.xl1xv1r",
	ImageAttr:      "src",
	AvatarSelector: "image",
	AvatarAttr:     "xlink:href",

	ScrollContainerSelector: "div.xb57i2i.x1q594ok",

	RequestMethod:     "POST",
	RequestURLPrefix:  "https://www.facebook.com/api/graphql/",
	FriendlyHeader:    "x-fb-friendly-name",
	FriendlyHeaderSub: "CommentsListComponentsPaginationQuery",
}

// commentExtractor lets tests drive the adapter without a browser.
type commentExtractor interface {
	Extract(ctx context.Context, postURL string, profile browser.Profile) (*browser.Header, []domain.Comment, error)
}

// Adapter scrapes a Facebook post through the shared browser session.
// Facebook exposes no stable public comment API, so the rendered page
// plus intercepted pagination traffic is the only source.
type Adapter struct {
	logger    logger.Logger
	extractor commentExtractor
}

var _ adapters.SourceAdapter = (*Adapter)(nil)

func New(extractor *browser.Extractor, log logger.Logger) *Adapter {
	return &Adapter{
		logger:    log.WithComponent("FacebookAdapter"),
		extractor: extractor,
	}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformFacebook
}

func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*domain.IngestResult, error) {
	postID, err := ExtractPostID(rawURL)
	if err != nil {
		return nil, err
	}

	header, comments, err := a.extractor.Extract(ctx, rawURL, profile)
	if err != nil {
		return nil, err
	}

	return &domain.IngestResult{
		Platform:  domain.PlatformFacebook,
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

// ExtractPostID takes the last path segment of the post URL, with any
// query string dropped.
func ExtractPostID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(parsed.Hostname(), "facebook.com") {
		return "", apperrors.UnsupportedURL(rawURL)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	id := parts[len(parts)-1]
	if id == "" {
		return "", apperrors.UnsupportedURL(rawURL)
	}
	return id, nil
}
