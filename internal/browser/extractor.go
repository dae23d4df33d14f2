package browser

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/ratelimit"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/logger"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/fx"
)

const (
	interceptTimeout = 500 * time.Millisecond
	scrollStep       = 3000
	settleDelay      = 500 * time.Millisecond
	lookupTimeout    = 10 * time.Second
)

// Profile describes how to extract one platform's rendered post page:
// the header field selectors and the shape of the background pagination
// request the comment UI issues while scrolling.
type Profile struct {
	Platform domain.Platform

	AuthorSelector string
	TextSelector   string
	ImageSelector  string
	ImageAttr      string
	AvatarSelector string
	AvatarAttr     string

	ScrollContainerSelector string

	// The distinguishing background request: method, URL prefix, and a
	// friendly-name header value it must carry.
	RequestMethod     string
	RequestURLPrefix  string
	FriendlyHeader    string
	FriendlyHeaderSub string
}

// Header holds the post-level fields scraped from the rendered page.
type Header struct {
	Author     string
	Text       string
	PostImage  string
	ProfileImg string
}

// CapturedRequest preserves one intercepted pagination request so the
// replay phase can re-issue it outside the browser.
type CapturedRequest struct {
	URL     string
	Headers map[string]string
	Body    string
}

// Extractor drives a headless page to scrape post header fields and
// capture the comment pagination request, then replays that request
// over plain HTTP to page through all comments. The two phases keep
// the expensive browser session out of the per-page comment loop.
type Extractor struct {
	manager *Manager
	client  *http.Client
	pool    ratelimit.Pool
	logger  logger.Logger
}

type ExtractorOpts struct {
	fx.In

	Manager *Manager
	Pool    ratelimit.Pool
	Logger  logger.Logger
}

func NewExtractor(opts ExtractorOpts) *Extractor {
	return &Extractor{
		manager: opts.Manager,
		client:  &http.Client{Timeout: 30 * time.Second},
		pool:    opts.Pool,
		logger:  opts.Logger.WithComponent("DynamicCommentExtractor"),
	}
}

// Extract scrapes the post at postURL according to the profile. A
// missing author is an apperrors.ErrSelectorNotFound; every other
// header field degrades to empty independently. When no qualifying
// pagination request is ever observed the comment list is empty, not
// an error.
func (e *Extractor) Extract(ctx context.Context, postURL string, profile Profile) (*Header, []domain.Comment, error) {
	page, cleanup, err := e.manager.NewScrapingPage(ctx, postURL)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrSourceUnavailable, err.Error())
	}
	defer cleanup()

	header, err := e.scrapeHeader(page, profile)
	if err != nil {
		return nil, nil, err
	}

	captured, err := e.captureCommentRequest(ctx, page, profile)
	if err != nil {
		return nil, nil, err
	}
	if captured == nil {
		// Few or zero comments never trigger lazy-load. Valid result.
		e.logger.Debug("No pagination request observed, post has no lazy-loaded comments", "url", postURL)
		return header, nil, nil
	}

	comments := e.replayComments(ctx, captured, postURL, profile.Platform)
	return header, comments, nil
}

// scrapeHeader reads the header fields. Each lookup independently
// falls back to empty so one missing element does not abort the rest.
func (e *Extractor) scrapeHeader(page playwright.Page, profile Profile) (*Header, error) {
	author := innerText(page, profile.AuthorSelector)
	if author == "" {
		return nil, apperrors.Wrapf(apperrors.ErrSelectorNotFound,
			"%s author selector %q matched nothing", profile.Platform, profile.AuthorSelector)
	}

	return &Header{
		Author:     author,
		Text:       innerText(page, profile.TextSelector),
		PostImage:  attribute(page, profile.ImageSelector, profile.ImageAttr),
		ProfileImg: attribute(page, profile.AvatarSelector, profile.AvatarAttr),
	}, nil
}

// captureCommentRequest scrolls the comment container until either one
// qualifying background request is observed or the container's content
// height stops growing (no more comments will load).
func (e *Extractor) captureCommentRequest(ctx context.Context, page playwright.Page, profile Profile) (*CapturedRequest, error) {
	requests := make(chan *CapturedRequest, 1)
	page.OnRequest(func(req playwright.Request) {
		if !matchesProfile(req, profile) {
			return
		}
		captured := preserveRequest(req)
		select {
		case requests <- captured:
		default:
		}
	})

	container := page.Locator(profile.ScrollContainerSelector)
	if n, err := container.Count(); err != nil || n == 0 {
		// No scrollable comment container rendered at all.
		return nil, nil
	}

	driver := &locatorScroller{container: container.First()}
	return waitForPaginationRequest(ctx, driver, requests, e.logger)
}

// scroller abstracts the scrollable container so the capture loop can
// be exercised without a real page.
type scroller interface {
	ContentHeight() (int, error)
	ScrollBy(px int) error
}

type locatorScroller struct {
	container playwright.Locator
}

func (s *locatorScroller) ContentHeight() (int, error) {
	v, err := s.container.Evaluate("el => el.scrollHeight", nil)
	if err != nil {
		return 0, err
	}
	return toInt(v), nil
}

func (s *locatorScroller) ScrollBy(px int) error {
	_, err := s.container.Evaluate("(el, px) => el.scrollBy(0, px)", px)
	return err
}

// waitForPaginationRequest advances by {request observed, timeout},
// whichever happens first. On timeout it re-measures the content
// height: unchanged height means the container is exhausted and the
// loop terminates with no capture.
func waitForPaginationRequest(ctx context.Context, drv scroller, requests <-chan *CapturedRequest, log logger.Logger) (*CapturedRequest, error) {
	previousHeight, err := drv.ContentHeight()
	if err != nil {
		return nil, nil
	}

	for {
		if err := drv.ScrollBy(scrollStep); err != nil {
			return nil, nil
		}

		select {
		case captured := <-requests:
			return captured, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interceptTimeout):
		}

		newHeight, err := drv.ContentHeight()
		if err != nil {
			return nil, nil
		}
		if newHeight == previousHeight {
			log.Debug("Content height stalled, no more comments will load")
			return nil, nil
		}
		previousHeight = newHeight

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settleDelay):
		}
	}
}

func matchesProfile(req playwright.Request, profile Profile) bool {
	if req.Method() != profile.RequestMethod {
		return false
	}
	if !strings.HasPrefix(req.URL(), profile.RequestURLPrefix) {
		return false
	}
	friendly, err := req.HeaderValue(profile.FriendlyHeader)
	if err != nil {
		return false
	}
	return strings.Contains(friendly, profile.FriendlyHeaderSub)
}

func preserveRequest(req playwright.Request) *CapturedRequest {
	headers, err := req.AllHeaders()
	if err != nil {
		headers = req.Headers()
	}
	body, err := req.PostData()
	if err != nil {
		body = ""
	}
	return &CapturedRequest{
		URL:     req.URL(),
		Headers: headers,
		Body:    body,
	}
}

func innerText(page playwright.Page, selector string) string {
	if selector == "" {
		return ""
	}
	text, err := page.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(float64(lookupTimeout.Milliseconds())),
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func attribute(page playwright.Page, selector, attr string) string {
	if selector == "" || attr == "" {
		return ""
	}
	value, err := page.Locator(selector).First().GetAttribute(attr, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(lookupTimeout.Milliseconds())),
	})
	if err != nil {
		return ""
	}
	return value
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
