package pipeline

import (
	"context"

	"github.com/orgball2608/comment-pulse/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=pipeline.go -destination=mocks/mock.go

// Client is the full ingest-and-analyze pipeline: fetch every URL,
// keep the English comments, label sentiment, cluster topics, and
// persist the result per owner.
type Client interface {
	// Analyze processes a batch of URLs for one owner. URLs the owner
	// already analyzed are returned from storage untouched. The error
	// map carries the URLs that failed at any stage.
	Analyze(ctx context.Context, urls []string, ownerID string) ([]*domain.AnalyzedResult, map[string]error)

	// History lists the owner's stored analyses, newest first.
	History(ctx context.Context, ownerID string) ([]*domain.AnalyzedResult, error)

	// ScheduleDatabaseCleanup starts the recurring job that prunes
	// stored analyses past the retention window.
	ScheduleDatabaseCleanup(ctx context.Context) error
}
