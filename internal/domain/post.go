package domain

import "strings"

// Platform identifies the source a post was ingested from.
type Platform string

const (
	PlatformReddit        Platform = "reddit"
	PlatformYouTube       Platform = "youtube"
	PlatformStackExchange Platform = "stackexchange"
	PlatformFacebook      Platform = "facebook"
	PlatformInstagram     Platform = "instagram"
)

// Post is one source submission normalized to the canonical shape.
// Timestamp is an ISO-8601 UTC string; empty when the source does not
// expose one. ID is stable within a platform: re-fetching the same URL
// yields the same ID.
type Post struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Avatar    string `json:"avatar,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// Comment is one reply under a Post. ID is source-native when available,
// otherwise a freshly generated token, unique within the post's list.
// Sentiment is filled by the analysis stage, never by adapters.
type Comment struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	AuthorImg string `json:"author_img,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
}

// IngestResult is the unit the pipeline produces per URL. Constructed
// fresh per fetch, immutable once returned.
type IngestResult struct {
	Platform  Platform  `json:"platform"`
	SourceURL string    `json:"source_url"`
	Post      Post      `json:"post"`
	Comments  []Comment `json:"comments"`
}

// FilterEmptyComments drops comments whose text is empty after
// trimming. Order of the survivors is preserved.
func FilterEmptyComments(comments []Comment) []Comment {
	out := comments[:0:0]
	for _, c := range comments {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
