package alertingimpl

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"

	"github.com/orgball2608/comment-pulse/internal/alerting"
	"github.com/orgball2608/comment-pulse/pkg/config"
	"github.com/orgball2608/comment-pulse/pkg/logger"
)

const (
	// window is the sliding window over which selector failures are
	// counted per platform.
	window = 15 * time.Minute
	// threshold selector failures within the window trigger an alert.
	threshold = 3
	// cooldown suppresses repeat alerts for the same platform.
	cooldown = time.Hour
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type MonitorImpl struct {
	TgBot  *tgbotapi.BotAPI
	Logger logger.Logger
	Config *config.Config

	mu        sync.Mutex
	failures  map[string][]time.Time
	lastAlert map[string]time.Time
	now       func() time.Time
}

func New(opts Opts) (*MonitorImpl, error) {
	m := &MonitorImpl{
		Logger:    opts.Logger.WithComponent("AlertMonitor"),
		Config:    opts.Config,
		failures:  make(map[string][]time.Time),
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}

	if opts.Config.Telegram.Token == "" {
		opts.Logger.Warn("Telegram token not configured, selector alerts disabled")
		return m, nil
	}

	tgBot, err := tgbotapi.NewBotAPI(opts.Config.Telegram.Token)
	if err != nil {
		opts.Logger.Error("Error creating bot", "Error", err)
		return nil, err
	}
	m.TgBot = tgBot
	return m, nil
}

var _ alerting.Monitor = (*MonitorImpl)(nil)

func (m *MonitorImpl) RecordFailure(platform string, kind string) {
	if kind != "selector_not_found" {
		return
	}

	m.mu.Lock()
	now := m.now()
	cutoff := now.Add(-window)

	recent := m.failures[platform][:0]
	for _, t := range m.failures[platform] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	m.failures[platform] = recent

	fire := len(recent) >= threshold && now.Sub(m.lastAlert[platform]) > cooldown
	if fire {
		m.lastAlert[platform] = now
	}
	count := len(recent)
	m.mu.Unlock()

	if fire {
		m.sendAlert(platform, count)
	}
}

func (m *MonitorImpl) sendAlert(platform string, count int) {
	text := fmt.Sprintf("⚠️ %s scraping selectors failing: %d misses in the last %s. The page markup has likely changed.",
		platform, count, window)

	if m.TgBot == nil {
		m.Logger.Warn("Selector drift detected but no alert channel", "Platform", platform, "Count", count)
		return
	}

	msg := tgbotapi.NewMessage(m.Config.Telegram.AlertChannel, text)
	if _, err := m.TgBot.Send(msg); err != nil {
		m.Logger.Error("Error sending alert to channel",
			"channel", m.Config.Telegram.AlertChannel,
			"error", err)
		return
	}

	m.Logger.Info("Selector drift alert sent", "Platform", platform, "Count", count)
}
