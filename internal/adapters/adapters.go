package adapters

import (
	"context"

	"github.com/orgball2608/comment-pulse/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=adapters.go -destination=mocks/mock.go

// SourceAdapter converts a source-specific post URL into the canonical
// post-plus-comments shape. Implementations fail with
// apperrors.ErrUnsupportedURL when the URL does not match the
// platform's path shape, apperrors.ErrNotFound when the referenced
// post does not exist, and apperrors.ErrSourceUnavailable when the
// upstream denies or errors irrecoverably.
type SourceAdapter interface {
	// Platform returns the platform this adapter serves. Also used as
	// the permit-pool source key.
	Platform() domain.Platform

	// Fetch retrieves the post and its comments. Best-effort lookups
	// (avatars, optional header fields) degrade to empty values rather
	// than failing the fetch. A zero-comment result is a valid success.
	Fetch(ctx context.Context, url string) (*domain.IngestResult, error)
}
