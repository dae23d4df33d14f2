package browser

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/orgball2608/comment-pulse/internal/domain"
)

// replayComments re-issues the captured pagination request directly
// against the origin server, walking variables.commentsAfterCursor
// from the returned page_info.end_cursor until has_next_page is false.
// Any failure ends the walk with whatever was collected so far; comment
// fetching is best-effort once the header fields are in hand.
func (e *Extractor) replayComments(ctx context.Context, captured *CapturedRequest, postURL string, platform domain.Platform) []domain.Comment {
	form, err := url.ParseQuery(captured.Body)
	if err != nil {
		e.logger.Warn("Captured pagination request body is not form-encoded", "error", err)
		return nil
	}

	var variables map[string]any
	if err := json.Unmarshal([]byte(form.Get("variables")), &variables); err != nil {
		e.logger.Warn("Captured pagination request has no variables field", "error", err)
		return nil
	}
	variables["commentsAfterCursor"] = nil

	var comments []domain.Comment

	for {
		encoded, err := json.Marshal(variables)
		if err != nil {
			break
		}
		form.Set("variables", string(encoded))

		var page *commentPage
		err = e.pool.WithPermit(ctx, string(platform), func() error {
			var fetchErr error
			page, fetchErr = e.fetchCommentPage(ctx, captured, form, postURL)
			return fetchErr
		})
		if err != nil {
			e.logger.Warn("Comment page replay failed, returning partial set", "error", err, "collected", len(comments))
			break
		}

		for _, edge := range page.edges {
			if strings.TrimSpace(edge.Node.Body.Text) == "" {
				continue
			}
			id := edge.Node.ID
			if id == "" {
				id = uuid.NewString()
			}
			comments = append(comments, domain.Comment{
				ID:        id,
				Author:    edge.Node.Author.Name,
				Text:      edge.Node.Body.Text,
				AuthorImg: edge.Node.Author.ProfilePicture.URI,
			})
		}

		if !page.hasNext || page.endCursor == "" {
			break
		}
		variables["commentsAfterCursor"] = page.endCursor
	}

	return comments
}

type commentPage struct {
	edges     []commentEdge
	hasNext   bool
	endCursor string
}

func (e *Extractor) fetchCommentPage(ctx context.Context, captured *CapturedRequest, form url.Values, postURL string) (*commentPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, captured.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Referer", postURL)
	for _, h := range []string{"x-asbd-id", "x-fb-friendly-name", "x-fb-lsd"} {
		if v, ok := captured.Headers[h]; ok {
			req.Header.Set(h, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The response may carry trailing metadata lines; only the first
	// line is the JSON document.
	firstLine, _, _ := strings.Cut(string(raw), "\n")

	var payload graphqlResponse
	if err := json.Unmarshal([]byte(firstLine), &payload); err != nil {
		return nil, err
	}

	comments := payload.Data.Node.CommentRendering.Comments
	return &commentPage{
		edges:     comments.Edges,
		hasNext:   comments.PageInfo.HasNextPage,
		endCursor: comments.PageInfo.EndCursor,
	}, nil
}

type graphqlResponse struct {
	Data struct {
		Node struct {
			CommentRendering struct {
				Comments struct {
					Edges    []commentEdge `json:"edges"`
					PageInfo struct {
						HasNextPage bool   `json:"has_next_page"`
						EndCursor   string `json:"end_cursor"`
					} `json:"page_info"`
				} `json:"comments"`
			} `json:"comment_rendering_instance_for_feed_location"`
		} `json:"node"`
	} `json:"data"`
}

type commentEdge struct {
	Node struct {
		ID     string `json:"id"`
		Author struct {
			Name           string `json:"name"`
			ProfilePicture struct {
				URI string `json:"uri"`
			} `json:"profile_picture_depth_0"`
		} `json:"author"`
		Body struct {
			Text string `json:"text"`
		} `json:"body"`
	} `json:"node"`
}
