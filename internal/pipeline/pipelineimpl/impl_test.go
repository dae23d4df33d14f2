package pipelineimpl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/langfilter"
	"github.com/orgball2608/comment-pulse/internal/repositories/ingest"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

type fakeOrchestrator struct {
	results []*domain.IngestResult
	failed  map[string]error
}

func (f *fakeOrchestrator) IngestBatch(ctx context.Context, urls []string, ownerID string) ([]*domain.IngestResult, map[string]error) {
	return f.results, f.failed
}

type fakeAnalyzer struct {
	sentimentErr error
	labelFor     func(text string) string
	topics       []domain.Topic
}

func (f *fakeAnalyzer) ClassifySentiment(ctx context.Context, texts []string) (*domain.SentimentResult, error) {
	if f.sentimentErr != nil {
		return nil, f.sentimentErr
	}
	labels := make([]string, len(texts))
	counts := map[string]int{"positive": 0, "neutral": 0, "negative": 0}
	for i, text := range texts {
		labels[i] = f.labelFor(text)
		counts[labels[i]]++
	}
	return &domain.SentimentResult{Labels: labels, Counts: counts}, nil
}

func (f *fakeAnalyzer) ClusterTopics(ctx context.Context, texts []string) ([]domain.Topic, error) {
	return f.topics, nil
}

type fakeRepo struct {
	mu     sync.Mutex
	stored map[string]*domain.AnalyzedResult
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: make(map[string]*domain.AnalyzedResult)}
}

func (r *fakeRepo) FindExisting(ctx context.Context, sourceURL, ownerID string) (*domain.AnalyzedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.stored[sourceURL+"|"+ownerID]; ok {
		return res, nil
	}
	return nil, ingest.ErrNotFound
}

func (r *fakeRepo) Upsert(ctx context.Context, sourceURL, ownerID string, result *domain.AnalyzedResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored[sourceURL+"|"+ownerID] = result
	return nil
}

func (r *fakeRepo) GetByOwner(ctx context.Context, ownerID string) ([]*domain.AnalyzedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AnalyzedResult
	for key, res := range r.stored {
		if len(key) > len(ownerID) && key[len(key)-len(ownerID):] == ownerID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *fakeRepo) CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func newTestPipeline(orch *fakeOrchestrator, analyzer *fakeAnalyzer, repo ingest.Repository) *PipelineImpl {
	cfg := &config.Config{}
	cfg.Ingest.Retention = 30 * 24 * time.Hour

	return New(Opts{
		Orchestrator: orch,
		Analyzer:     analyzer,
		Filter:       langfilter.New(),
		Repo:         repo,
		Logger:       logger.New(logger.Opts{}),
		Config:       cfg,
	})
}

func TestAnalyze_FiltersLabelsAndPersists(t *testing.T) {
	sourceURL := "https://www.reddit.com/r/golang/comments/abc/"
	orch := &fakeOrchestrator{
		results: []*domain.IngestResult{{
			Platform:  domain.PlatformReddit,
			SourceURL: sourceURL,
			Post:      domain.Post{ID: "abc", Author: "alice"},
			Comments: []domain.Comment{
				{ID: "c1", Text: "This product is absolutely great and I love using it."},
				{ID: "c2", Text: "Это предложение написано на русском языке для проверки."},
				{ID: "c3", Text: "Honestly this is terrible and I regret buying it entirely."},
			},
		}},
		failed: map[string]error{},
	}
	analyzer := &fakeAnalyzer{
		labelFor: func(text string) string {
			if text[0] == 'T' {
				return domain.SentimentPositive
			}
			return domain.SentimentNegative
		},
		topics: []domain.Topic{{TopicID: 0, Title: "product quality", Size: 2}},
	}
	repo := newFakeRepo()

	p := newTestPipeline(orch, analyzer, repo)
	results, failed := p.Analyze(context.Background(), []string{sourceURL}, "owner-1")

	if len(failed) != 0 {
		t.Fatalf("failures: %v", failed)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	got := results[0]
	if len(got.Comments) != 2 {
		t.Fatalf("got %d comments after language filter, want 2: %+v", len(got.Comments), got.Comments)
	}
	if got.Comments[0].ID != "c1" || got.Comments[0].Sentiment != domain.SentimentPositive {
		t.Errorf("comment[0] = %+v", got.Comments[0])
	}
	if got.Comments[1].ID != "c3" || got.Comments[1].Sentiment != domain.SentimentNegative {
		t.Errorf("comment[1] = %+v", got.Comments[1])
	}
	if got.Sentiment[domain.SentimentPositive] != 1 || got.Sentiment[domain.SentimentNegative] != 1 {
		t.Errorf("sentiment counts = %v", got.Sentiment)
	}
	if len(got.Topics) != 1 || got.Topics[0].Title != "product quality" {
		t.Errorf("topics = %+v", got.Topics)
	}

	if _, err := repo.FindExisting(context.Background(), sourceURL, "owner-1"); err != nil {
		t.Errorf("result not persisted: %v", err)
	}
}

func TestAnalyze_ReturnsStoredWithoutReanalysis(t *testing.T) {
	sourceURL := "https://www.reddit.com/r/golang/comments/seen/"
	repo := newFakeRepo()
	stored := &domain.AnalyzedResult{
		IngestResult: domain.IngestResult{SourceURL: sourceURL, Post: domain.Post{ID: "stored"}},
		Sentiment:    map[string]int{"positive": 5},
	}
	_ = repo.Upsert(context.Background(), sourceURL, "owner-1", stored)

	analyzer := &fakeAnalyzer{
		sentimentErr: errors.New("analyzer must not be called for stored results"),
	}
	p := newTestPipeline(&fakeOrchestrator{failed: map[string]error{}}, analyzer, repo)

	results, failed := p.Analyze(context.Background(), []string{sourceURL}, "owner-1")
	if len(failed) != 0 {
		t.Fatalf("failures: %v", failed)
	}
	if len(results) != 1 || results[0].Post.ID != "stored" {
		t.Fatalf("results = %+v, want the stored analysis", results)
	}
}

func TestAnalyze_AnalyzerFailureIsPerURL(t *testing.T) {
	okURL := "https://www.reddit.com/r/golang/comments/ok/"
	orch := &fakeOrchestrator{
		results: []*domain.IngestResult{{
			SourceURL: okURL,
			Comments:  []domain.Comment{{ID: "c1", Text: "A sensible English sentence to analyze."}},
		}},
		failed: map[string]error{
			"https://youtu.be/bad": errors.New("fetch failed"),
		},
	}
	analyzer := &fakeAnalyzer{sentimentErr: errors.New("model offline")}

	p := newTestPipeline(orch, analyzer, newFakeRepo())
	results, failed := p.Analyze(context.Background(), []string{okURL, "https://youtu.be/bad"}, "owner-1")

	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
	if len(failed) != 2 {
		t.Fatalf("failures = %v, want both urls", failed)
	}
	if failed[okURL] == nil || failed["https://youtu.be/bad"] == nil {
		t.Errorf("failures = %v", failed)
	}
}

func TestAnalyze_ZeroCommentResultSucceeds(t *testing.T) {
	sourceURL := "https://www.reddit.com/r/golang/comments/quiet/"
	orch := &fakeOrchestrator{
		results: []*domain.IngestResult{{SourceURL: sourceURL, Post: domain.Post{ID: "quiet"}}},
		failed:  map[string]error{},
	}
	analyzer := &fakeAnalyzer{labelFor: func(string) string { return domain.SentimentNeutral }}

	p := newTestPipeline(orch, analyzer, newFakeRepo())
	results, failed := p.Analyze(context.Background(), []string{sourceURL}, "owner-1")

	if len(failed) != 0 {
		t.Fatalf("failures: %v", failed)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if len(results[0].Comments) != 0 {
		t.Errorf("comments = %+v, want none", results[0].Comments)
	}
}
