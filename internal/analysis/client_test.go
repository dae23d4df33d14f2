package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

func clientWithServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Client{
		endpoint: srv.URL,
		apiKey:   "test-key",
		http:     srv.Client(),
		logger:   logger.New(logger.Opts{}),
	}
}

func TestClassifySentiment(t *testing.T) {
	c := clientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sentiment" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}

		var req struct {
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Texts) != 2 {
			t.Errorf("got %d texts, want 2", len(req.Texts))
		}

		fmt.Fprint(w, `{"labels": ["positive", "negative"], "counts": {"positive": 1, "neutral": 0, "negative": 1}}`)
	})

	result, err := c.ClassifySentiment(context.Background(), []string{"great stuff", "awful stuff"})
	if err != nil {
		t.Fatalf("ClassifySentiment: %v", err)
	}
	if result.Labels[0] != "positive" || result.Labels[1] != "negative" {
		t.Errorf("labels = %v", result.Labels)
	}
	if result.Counts["negative"] != 1 {
		t.Errorf("counts = %v", result.Counts)
	}
}

func TestClassifySentiment_EmptyInputSkipsService(t *testing.T) {
	c := clientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})

	result, err := c.ClassifySentiment(context.Background(), nil)
	if err != nil {
		t.Fatalf("ClassifySentiment: %v", err)
	}
	if len(result.Labels) != 0 {
		t.Errorf("labels = %v, want empty", result.Labels)
	}
	if result.Counts["positive"] != 0 || result.Counts["neutral"] != 0 || result.Counts["negative"] != 0 {
		t.Errorf("counts = %v, want zeroes", result.Counts)
	}
}

func TestClassifySentiment_LabelCountMismatch(t *testing.T) {
	c := clientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"labels": ["positive"], "counts": {"positive": 1}}`)
	})

	_, err := c.ClassifySentiment(context.Background(), []string{"a", "b"})
	if !apperrors.IsSourceUnavailable(err) {
		t.Fatalf("err = %v, want source unavailable", err)
	}
}

func TestClusterTopics(t *testing.T) {
	c := clientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/topics" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"results": [
			{"topicId": 0, "title": "pricing", "keywords": ["price", "cost"], "size": 12, "example": "too expensive"},
			{"topicId": 1, "title": "quality", "keywords": ["build"], "size": 7, "example": "well made"}
		]}`)
	})

	topics, err := c.ClusterTopics(context.Background(), []string{"too expensive", "well made"})
	if err != nil {
		t.Fatalf("ClusterTopics: %v", err)
	}
	if len(topics) != 2 || topics[0].Title != "pricing" || topics[1].Size != 7 {
		t.Errorf("topics = %+v", topics)
	}
}

func TestClusterTopics_MissingResults(t *testing.T) {
	c := clientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := c.ClusterTopics(context.Background(), []string{"a"})
	if !apperrors.IsSourceUnavailable(err) {
		t.Fatalf("err = %v, want source unavailable", err)
	}
}

func TestPost_Non200(t *testing.T) {
	c := clientWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.ClassifySentiment(context.Background(), []string{"a"})
	if !apperrors.IsSourceUnavailable(err) {
		t.Fatalf("err = %v, want source unavailable", err)
	}
}
