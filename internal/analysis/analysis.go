package analysis

import (
	"context"

	"github.com/orgball2608/comment-pulse/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=analysis.go -destination=mocks/mock.go

// Analyzer runs the external NLP service over a batch of comment texts.
type Analyzer interface {
	// ClassifySentiment labels each text positive/neutral/negative.
	// The returned label slice is parallel to texts.
	ClassifySentiment(ctx context.Context, texts []string) (*domain.SentimentResult, error)
	// ClusterTopics groups the texts into cross-comment topic clusters.
	ClusterTopics(ctx context.Context, texts []string) ([]domain.Topic, error)
}
