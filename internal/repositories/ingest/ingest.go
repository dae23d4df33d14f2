package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/comment-pulse/internal/domain"
)

var ErrNotFound = errors.New("ingest result not found")

//go:generate go run go.uber.org/mock/mockgen -source=ingest.go -destination=mocks/mock.go
type Repository interface {
	// FindExisting returns the stored result for (sourceURL, ownerID),
	// or ErrNotFound. The orchestrator uses this to skip network
	// traffic for previously-ingested URLs under the same owner.
	FindExisting(ctx context.Context, sourceURL, ownerID string) (*domain.AnalyzedResult, error)

	// Upsert stores the analyzed result keyed by (sourceURL, ownerID).
	// Idempotent: re-storing the same key replaces the payload.
	Upsert(ctx context.Context, sourceURL, ownerID string, result *domain.AnalyzedResult) error

	// GetByOwner returns all results stored for an owner, newest first.
	GetByOwner(ctx context.Context, ownerID string) ([]*domain.AnalyzedResult, error)

	// CleanupOldRecords deletes results older than the given duration
	// and returns the number of rows removed.
	CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error)
}
