package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Reddit struct {
		ClientID     string `env:"REDDIT_CLIENT_ID"`
		ClientSecret string `env:"REDDIT_CLIENT_SECRET"`
		UserAgent    string `env:"REDDIT_USER_AGENT" env-default:"comment-pulse/1.0"`
		// MaxMoreExpansions caps how many "more comments" placeholders a
		// single fetch expands. Popular threads carry hundreds.
		MaxMoreExpansions int `env:"REDDIT_MAX_MORE_EXPANSIONS" env-default:"25"`
	}
	YouTube struct {
		APIKey      string `env:"YOUTUBE_API_KEY"`
		MaxComments int    `env:"YOUTUBE_MAX_COMMENTS" env-default:"200"`
	}
	StackExchange struct {
		Key string `env:"STACKEXCHANGE_KEY"`
	}
	Telegram struct {
		Token        string `env:"TELEGRAM_TOKEN"`
		AlertChannel int64  `env:"TELEGRAM_ALERT_CHANNEL"`
	}
	Analysis struct {
		Endpoint string `env:"ANALYSIS_ENDPOINT" env-default:"http://localhost:8501"`
		APIKey   string `env:"ANALYSIS_API_KEY"`
	}
	Ingest struct {
		// BatchConcurrency is the top-level cap: at most this many URLs
		// are in flight per orchestrator batch, independent of the
		// per-source permit pools.
		BatchConcurrency int           `env:"INGEST_BATCH_CONCURRENCY" env-default:"5"`
		SourcePermits    int           `env:"INGEST_SOURCE_PERMITS" env-default:"5"`
		BatchTimeout     time.Duration `env:"INGEST_BATCH_TIMEOUT" env-default:"10m"`
		Retention        time.Duration `env:"INGEST_RETENTION" env-default:"720h"`
	}
}

// GetDSN builds the Postgres connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
		c.Postgres.Name, c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode)
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
