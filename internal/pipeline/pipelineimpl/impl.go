package pipelineimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/samber/lo"
	"go.uber.org/fx"

	"github.com/orgball2608/comment-pulse/internal/analysis"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/langfilter"
	"github.com/orgball2608/comment-pulse/internal/orchestrator"
	"github.com/orgball2608/comment-pulse/internal/pipeline"
	"github.com/orgball2608/comment-pulse/internal/repositories/ingest"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

type Opts struct {
	fx.In

	Orchestrator orchestrator.Client
	Analyzer     analysis.Analyzer
	Filter       *langfilter.Filter
	Repo         ingest.Repository
	Logger       logger.Logger
	Config       *config.Config
}

type PipelineImpl struct {
	Orchestrator orchestrator.Client
	Analyzer     analysis.Analyzer
	Filter       *langfilter.Filter
	Repo         ingest.Repository
	Logger       logger.Logger
	Config       *config.Config
}

func New(opts Opts) *PipelineImpl {
	return &PipelineImpl{
		Orchestrator: opts.Orchestrator,
		Analyzer:     opts.Analyzer,
		Filter:       opts.Filter,
		Repo:         opts.Repo,
		Logger:       opts.Logger.WithComponent("Pipeline"),
		Config:       opts.Config,
	}
}

var _ pipeline.Client = (*PipelineImpl)(nil)

func (p *PipelineImpl) Analyze(ctx context.Context, urls []string, ownerID string) ([]*domain.AnalyzedResult, map[string]error) {
	results := make([]*domain.AnalyzedResult, 0, len(urls))
	failed := make(map[string]error)

	// Serve already-analyzed URLs straight from storage so the
	// analysis service is never called twice for the same URL+owner.
	toFetch := make([]string, 0, len(urls))
	for _, url := range lo.Uniq(urls) {
		existing, err := p.Repo.FindExisting(ctx, url, ownerID)
		if err == nil && existing != nil {
			p.Logger.Info("Returning stored analysis", "URL", url)
			results = append(results, existing)
			continue
		}
		toFetch = append(toFetch, url)
	}

	ingested, fetchErrs := p.Orchestrator.IngestBatch(ctx, toFetch, ownerID)
	for url, err := range fetchErrs {
		failed[url] = err
	}

	for _, res := range ingested {
		analyzed, err := p.analyzeOne(ctx, res)
		if err != nil {
			p.Logger.Error("Analysis failed", "URL", res.SourceURL, "Error", err)
			failed[res.SourceURL] = err
			continue
		}

		if err := p.Repo.Upsert(ctx, res.SourceURL, ownerID, analyzed); err != nil {
			// The caller still gets the result; only history is affected.
			p.Logger.Error("Failed to persist analysis", "URL", res.SourceURL, "Error", err)
		}
		results = append(results, analyzed)
	}

	return results, failed
}

// analyzeOne runs the NLP stage over one ingested post. Comments are
// filtered to English first; labels come back parallel to the filtered
// list and are attached in place.
func (p *PipelineImpl) analyzeOne(ctx context.Context, res *domain.IngestResult) (*domain.AnalyzedResult, error) {
	comments := p.Filter.EnglishComments(res.Comments)
	texts := lo.Map(comments, func(c domain.Comment, _ int) string { return c.Text })

	sentiment, err := p.Analyzer.ClassifySentiment(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("classify sentiment: %w", err)
	}
	for i := range comments {
		comments[i].Sentiment = sentiment.Labels[i]
	}

	topics, err := p.Analyzer.ClusterTopics(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("cluster topics: %w", err)
	}

	analyzed := &domain.AnalyzedResult{
		IngestResult: *res,
		Sentiment:    sentiment.Counts,
		Topics:       topics,
	}
	analyzed.Comments = comments
	return analyzed, nil
}

func (p *PipelineImpl) History(ctx context.Context, ownerID string) ([]*domain.AnalyzedResult, error) {
	return p.Repo.GetByOwner(ctx, ownerID)
}

// ScheduleDatabaseCleanup sets up a daily job to prune analyses older
// than the configured retention window.
func (p *PipelineImpl) ScheduleDatabaseCleanup(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	// Run at 3:00 AM every day.
	_, err = scheduler.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0)),
		),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				p.Logger.Info("Context cancelled, stopping database cleanup job")
				return
			}

			p.Logger.Info("Starting scheduled database cleanup job")

			cleanupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			rowsDeleted, err := p.Repo.CleanupOldRecords(cleanupCtx, p.Config.Ingest.Retention)
			if err != nil {
				p.Logger.Error("Failed to clean up old records", "error", err)
				return
			}

			p.Logger.Info("Database cleanup completed successfully", "rows_deleted", rowsDeleted)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule database cleanup: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		p.Logger.Info("Stopping database cleanup scheduler")
		if err := scheduler.Shutdown(); err != nil {
			p.Logger.Error("Failed to shut down cleanup scheduler", "error", err)
		}
	}()

	return nil
}
