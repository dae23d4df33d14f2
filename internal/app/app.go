package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"

	"github.com/orgball2608/comment-pulse/internal/adapters"
	"github.com/orgball2608/comment-pulse/internal/adapters/facebook"
	"github.com/orgball2608/comment-pulse/internal/adapters/instagram"
	"github.com/orgball2608/comment-pulse/internal/adapters/reddit"
	"github.com/orgball2608/comment-pulse/internal/adapters/stackexchange"
	"github.com/orgball2608/comment-pulse/internal/adapters/youtube"
	"github.com/orgball2608/comment-pulse/internal/alerting"
	"github.com/orgball2608/comment-pulse/internal/alerting/alertingimpl"
	"github.com/orgball2608/comment-pulse/internal/analysis"
	"github.com/orgball2608/comment-pulse/internal/browser"
	"github.com/orgball2608/comment-pulse/internal/dispatcher"
	"github.com/orgball2608/comment-pulse/internal/langfilter"
	_ "github.com/orgball2608/comment-pulse/internal/migrations"
	"github.com/orgball2608/comment-pulse/internal/orchestrator"
	"github.com/orgball2608/comment-pulse/internal/pipeline"
	"github.com/orgball2608/comment-pulse/internal/pipeline/pipelineimpl"
	"github.com/orgball2608/comment-pulse/internal/ratelimit"
	"github.com/orgball2608/comment-pulse/internal/repositories/ingest"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
	"github.com/orgball2608/comment-pulse/pkg/pgx"
)

var App = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		newPermitPool,
		browser.NewManager,
		browser.NewExtractor,
		langfilter.New,
	),
	fx.Provide(
		fx.Annotate(
			analysis.NewClient,
			fx.As(new(analysis.Analyzer)),
		),
		fx.Annotate(
			alertingimpl.New,
			fx.As(new(alerting.Monitor)),
		),
		fx.Annotate(
			orchestrator.New,
			fx.As(new(orchestrator.Client)),
		),
		fx.Annotate(
			pipelineimpl.New,
			fx.As(new(pipeline.Client)),
		),
		dispatcher.New,
	),
	fx.Provide(
		asAdapter(reddit.New),
		asAdapter(youtube.New),
		asAdapter(stackexchange.New),
		asAdapter(facebook.New),
		asAdapter(instagram.New),
	),
	ingest.Module,
	fx.Invoke(
		func(c *config.Config) error {
			if err := goose.SetDialect("pgx"); err != nil {
				return err
			}

			db, err := sql.Open("postgres", c.GetDSN())
			if err != nil {
				return err
			}
			defer db.Close()

			wd, err := os.Getwd()
			if err != nil {
				return err
			}

			return goose.Up(db, filepath.Join(wd, "internal", "migrations"))
		}),
	fx.Invoke(run),
)

// asAdapter registers a platform constructor into the adapters group
// the dispatcher consumes.
func asAdapter(constructor any) any {
	return fx.Annotate(
		constructor,
		fx.As(new(adapters.SourceAdapter)),
		fx.ResultTags(`group:"adapters"`),
	)
}

func newPermitPool(cfg *config.Config) ratelimit.Pool {
	return ratelimit.NewPermitPool(cfg.Ingest.SourcePermits)
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, pipe pipeline.Client) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go startHttpServer(log, cfg)

			ctx := context.Background()
			if err := pipe.ScheduleDatabaseCleanup(ctx); err != nil {
				log.Error("Failed to schedule database cleanup", "Error", err)
			}

			return nil
		},
	})
}

func startHttpServer(log logger.Logger, cfg *config.Config) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})

	log.Info(fmt.Sprintf("Starting server on :%d", cfg.App.Port))

	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), nil); err != nil {
		log.Error("Server failed to start: %v", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Info("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
