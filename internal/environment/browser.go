package environment

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/common"
)

// chromeCandidates are looked up on PATH when no exec path is configured.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// FindChrome returns the browser binary to use: the configured path if it
// exists, else the first candidate on PATH, else "".
func FindChrome(execPath string) string {
	if execPath != "" {
		if path, err := exec.LookPath(execPath); err == nil {
			return path
		}
		return ""
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Browser is the single headless Chrome instance shared by a run.
type Browser struct {
	ctx             context.Context
	allocatorCancel context.CancelFunc
	browserCancel   context.CancelFunc
	logger          arbor.ILogger
}

// LaunchBrowser starts Chrome and verifies it can load about:blank.
func LaunchBrowser(config *common.BrowserConfig, logger arbor.ILogger) (*Browser, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("lang", config.Locale),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	)
	if config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(config.ExecPath))
	}

	// The browser outlives any single setup deadline, so it hangs off Background.
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Debug().Str("source", "chromedp").Msg(fmt.Sprintf(format, args...))
		}),
	)

	b := &Browser{
		ctx:             browserCtx,
		allocatorCancel: allocatorCancel,
		browserCancel:   browserCancel,
		logger:          logger,
	}

	// First Run allocates the browser and must not carry a timeout.
	if err := chromedp.Run(browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	var title string
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank"), chromedp.Title(&title)); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Info().
		Bool("headless", config.Headless).
		Int("viewport_width", config.ViewportWidth).
		Int("viewport_height", config.ViewportHeight).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser launched")

	return b, nil
}

// Context returns the browser context. Callers open tabs with
// chromedp.NewContext(ctx).
func (b *Browser) Context() context.Context {
	return b.ctx
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocatorCancel != nil {
		b.allocatorCancel()
	}
	b.logger.Debug().Msg("Browser closed")
}
