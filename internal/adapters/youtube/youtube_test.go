package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/orgball2608/comment-pulse/internal/ratelimit"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=short", "", true},
		{"https://www.youtube.com/channel/UC123", "", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractVideoID(tt.url)
		if tt.wantErr {
			if !apperrors.IsUnsupportedURL(err) {
				t.Errorf("ExtractVideoID(%q) err = %v, want unsupported url", tt.url, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractVideoID(%q) unexpected error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func adapterWithServer(t *testing.T, handler http.HandlerFunc, maxComments int) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := yt.NewService(context.Background(),
		option.WithAPIKey("test-key"),
		option.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("youtube service: %v", err)
	}

	return &Adapter{
		logger:      logger.New(logger.Opts{}),
		svc:         svc,
		pool:        ratelimit.NewPermitPool(2),
		maxComments: maxComments,
		pacer:       ratelimit.NewPacer(1000),
	}
}

const videoBody = `{"items": [{"snippet": {
	"title": "A video",
	"description": "video description",
	"channelTitle": "SomeChannel",
	"channelId": "UCchan",
	"publishedAt": "2024-01-02T03:04:05Z"
}}]}`

const channelBody = `{"items": [{"snippet": {"thumbnails": {
	"high": {"url": "https://yt.test/high.jpg"},
	"maxres": {"url": "https://yt.test/maxres.jpg"}
}}}]}`

func commentsPage(nextToken string, ids ...string) string {
	var items []string
	for _, id := range ids {
		items = append(items, fmt.Sprintf(`{"snippet": {"topLevelComment": {"id": %q, "snippet": {
			"authorDisplayName": "user-%s",
			"textDisplay": "comment %s",
			"publishedAt": "2024-01-03T00:00:00Z",
			"authorProfileImageUrl": "https://yt.test/%s.jpg"
		}}}}`, id, id, id, id))
	}
	page := fmt.Sprintf(`{"items": [%s]`, strings.Join(items, ","))
	if nextToken != "" {
		page += fmt.Sprintf(`, "nextPageToken": %q`, nextToken)
	}
	return page + "}"
}

func TestFetch_PagesAndCapsComments(t *testing.T) {
	commentCalls := 0
	a := adapterWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/videos"):
			fmt.Fprint(w, videoBody)
		case strings.HasSuffix(r.URL.Path, "/channels"):
			fmt.Fprint(w, channelBody)
		case strings.HasSuffix(r.URL.Path, "/commentThreads"):
			commentCalls++
			if r.URL.Query().Get("pageToken") == "" {
				fmt.Fprint(w, commentsPage("page2", "c1", "c2"))
			} else {
				fmt.Fprint(w, commentsPage("page3", "c3", "c4"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}, 3)

	result, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Post.Author != "SomeChannel" || result.Post.Text != "video description" {
		t.Errorf("post = %+v", result.Post)
	}
	if result.Post.Avatar != "https://yt.test/maxres.jpg" {
		t.Errorf("avatar = %q, want maxres preferred", result.Post.Avatar)
	}
	if len(result.Comments) != 3 {
		t.Fatalf("got %d comments, want cap of 3", len(result.Comments))
	}
	if commentCalls != 2 {
		t.Errorf("comment pages fetched = %d, want 2", commentCalls)
	}
	if result.Comments[2].ID != "c3" {
		t.Errorf("third comment = %+v", result.Comments[2])
	}
}

func TestFetch_CommentsDisabled(t *testing.T) {
	a := adapterWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/videos"):
			fmt.Fprint(w, videoBody)
		case strings.HasSuffix(r.URL.Path, "/channels"):
			fmt.Fprint(w, channelBody)
		case strings.HasSuffix(r.URL.Path, "/commentThreads"):
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": {"code": 403, "message": "commentsDisabled"}}`)
		}
	}, 200)

	result, err := a.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("disabled comments should be a zero-comment success, got %v", err)
	}
	if len(result.Comments) != 0 {
		t.Errorf("got %d comments, want 0", len(result.Comments))
	}
}

func TestFetch_VideoNotFound(t *testing.T) {
	a := adapterWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": []}`)
	}, 200)

	_, err := a.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestFetch_MissingAPIKey(t *testing.T) {
	a := &Adapter{
		logger: logger.New(logger.Opts{}),
		pool:   ratelimit.NewPermitPool(1),
		pacer:  ratelimit.NewPacer(1000),
	}

	_, err := a.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if !apperrors.IsConfiguration(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
