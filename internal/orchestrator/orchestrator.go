package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/orgball2608/comment-pulse/internal/alerting"
	"github.com/orgball2608/comment-pulse/internal/dispatcher"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/repositories/ingest"
	"github.com/orgball2608/comment-pulse/pkg/apperrors"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

//go:generate go run go.uber.org/mock/mockgen -source=orchestrator.go -destination=mocks/mock.go

// Client runs source fetches for batches of URLs. Each URL succeeds or
// fails on its own: one bad URL never takes down the batch, and the
// returned error map carries exactly the URLs whose fetch failed.
type Client interface {
	// IngestBatch fetches every URL concurrently and returns results in
	// completion order plus a per-URL error map. URLs already ingested
	// for this owner are served from storage without a fetch.
	IngestBatch(ctx context.Context, urls []string, ownerID string) ([]*domain.IngestResult, map[string]error)
}

type Impl struct {
	dispatcher  *dispatcher.Dispatcher
	repo        ingest.Repository
	monitor     alerting.Monitor
	logger      logger.Logger
	concurrency int
	timeout     time.Duration
}

type Opts struct {
	fx.In

	Dispatcher *dispatcher.Dispatcher
	Repo       ingest.Repository
	Monitor    alerting.Monitor
	Logger     logger.Logger
	Config     *config.Config
}

func New(opts Opts) *Impl {
	return &Impl{
		dispatcher:  opts.Dispatcher,
		repo:        opts.Repo,
		monitor:     opts.Monitor,
		logger:      opts.Logger.WithComponent("Orchestrator"),
		concurrency: opts.Config.Ingest.BatchConcurrency,
		timeout:     opts.Config.Ingest.BatchTimeout,
	}
}

var _ Client = (*Impl)(nil)

func (o *Impl) IngestBatch(ctx context.Context, urls []string, ownerID string) ([]*domain.IngestResult, map[string]error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	unique := lo.Uniq(urls)

	var (
		mu      sync.Mutex
		results = make([]*domain.IngestResult, 0, len(unique))
		failed  = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, url := range unique {
		url := url
		g.Go(func() error {
			result, err := o.ingestOne(gctx, url, ownerID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				kind := apperrors.Kind(err)
				o.logger.Warn("URL ingest failed", "URL", url, "Kind", kind, "Error", err)
				if platform, perr := dispatcher.MatchPlatform(url); perr == nil && o.monitor != nil {
					o.monitor.RecordFailure(string(platform), kind)
				}
				failed[url] = err
				return nil
			}
			results = append(results, result)
			return nil
		})
	}

	// Workers never return errors, so Wait only synchronizes.
	_ = g.Wait()

	o.logger.Info("Batch complete", "Requested", len(urls), "Unique", len(unique),
		"Succeeded", len(results), "Failed", len(failed))
	return results, failed
}

func (o *Impl) ingestOne(ctx context.Context, url, ownerID string) (result *domain.IngestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()

	existing, err := o.repo.FindExisting(ctx, url, ownerID)
	if err == nil && existing != nil {
		o.logger.Info("Serving previously ingested URL", "URL", url)
		return &existing.IngestResult, nil
	}
	if err != nil && !errors.Is(err, ingest.ErrNotFound) {
		o.logger.Warn("Dedup lookup failed, fetching anyway", "URL", url, "Error", err)
	}

	adapter, err := o.dispatcher.Resolve(url)
	if err != nil {
		return nil, err
	}

	return adapter.Fetch(ctx, url)
}
