package reddit

import (
	"encoding/json"

	"github.com/orgball2608/comment-pulse/internal/domain"
)

// Reddit listing payloads. Thing "kind" discriminates t1 (comment),
// t3 (submission) and "more" placeholder nodes; the dynamic shape stays
// behind these types and never leaks past the adapter.

type listing struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	Children []thing `json:"children"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type submissionData struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
}

type commentData struct {
	ID         string       `json:"id"`
	Author     string       `json:"author"`
	Body       string       `json:"body"`
	CreatedUTC float64      `json:"created_utc"`
	Replies    repliesField `json:"replies"`
}

type moreData struct {
	Children []string `json:"children"`
}

// repliesField is a listing for comments with replies and the empty
// string for leaves.
type repliesField struct {
	Listing *listing
}

func (r *repliesField) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == `""` || string(b) == "null" {
		r.Listing = nil
		return nil
	}
	var l listing
	if err := json.Unmarshal(b, &l); err != nil {
		return err
	}
	r.Listing = &l
	return nil
}

type moreChildrenResponse struct {
	JSON struct {
		Data struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// flattenTree walks a comment forest depth-first in pagination order,
// converting t1 nodes to canonical comments and collecting the child
// ids of "more" placeholders. Undecodable nodes are skipped.
func flattenTree(children []thing) ([]domain.Comment, []string) {
	var comments []domain.Comment
	var more []string

	for _, child := range children {
		switch child.Kind {
		case "t1":
			var c commentData
			if err := json.Unmarshal(child.Data, &c); err != nil {
				continue
			}
			comments = append(comments, domain.Comment{
				ID:        c.ID,
				Author:    authorOrDeleted(c.Author),
				Text:      c.Body,
				Timestamp: isoFromUnix(c.CreatedUTC),
			})
			if c.Replies.Listing != nil {
				sub, subMore := flattenTree(c.Replies.Listing.Data.Children)
				comments = append(comments, sub...)
				more = append(more, subMore...)
			}
		case "more":
			var m moreData
			if err := json.Unmarshal(child.Data, &m); err != nil {
				continue
			}
			more = append(more, m.Children...)
		}
	}

	return comments, more
}
