package browser

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/orgball2608/comment-pulse/pkg/logger"
	"github.com/orgball2608/comment-pulse/pkg/retry"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/fx"
)

// Manager owns the single headless browser process shared by the
// scraping adapters. Pages are cheap; the browser is not.
type Manager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  logger.Logger
}

// Browser returns the browser instance.
func (m *Manager) Browser() playwright.Browser {
	return m.browser
}

// NewManager starts playwright and launches a headless chromium
// instance, both torn down through the fx lifecycle.
func NewManager(lc fx.Lifecycle, log logger.Logger) (*Manager, error) {
	log.Info("Initializing browser manager...")
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage", // Important in Docker/container
			"--disable-accelerated-2d-canvas",
			"--no-first-run",
			"--no-zygote",
			"--disable-gpu",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	manager := &Manager{
		pw:      pw,
		browser: browser,
		logger:  log,
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down browser...")
			if err := manager.browser.Close(); err != nil {
				log.Error("Failed to close browser", "error", err)
			}
			if err := manager.pw.Stop(); err != nil {
				log.Error("Failed to stop playwright", "error", err)
				return err
			}
			return nil
		},
	})

	log.Info("Browser manager initialized successfully.")
	return manager, nil
}

// NewScrapingPage creates an isolated page for one scrape, with static
// assets blocked. The returned cleanup closes the whole context and
// must run on every exit path.
func (m *Manager) NewScrapingPage(ctx context.Context, url string) (playwright.Page, func(), error) {
	brContext, err := m.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create browser context: %w", err)
	}

	cleanup := func() {
		_ = brContext.Close()
		debug.FreeOSMemory()
	}

	if err := blockStaticAssets(brContext); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to set up request interception: %w", err)
	}

	page, err := brContext.NewPage()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("could not create new page: %w", err)
	}

	gotoOperation := func() error {
		_, err := page.Goto(url, playwright.PageGotoOptions{Timeout: playwright.Float(60000)})
		return err
	}

	err = retry.Do(ctx, m.logger, "PageGoto", gotoOperation, retry.DefaultConfig())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("could not goto page '%s' after retries: %w", url, err)
	}

	return page, cleanup, nil
}

// blockStaticAssets aborts image/style/font/media requests; only
// document, script and xhr traffic matters for extraction.
func blockStaticAssets(ctx playwright.BrowserContext) error {
	return ctx.Route("**/*", func(route playwright.Route) {
		resourceType := route.Request().ResourceType()
		if resourceType == "image" || resourceType == "stylesheet" || resourceType == "font" || resourceType == "media" {
			_ = route.Abort()
		} else {
			_ = route.Continue()
		}
	})
}
