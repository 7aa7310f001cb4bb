// Package capture loads one render target in an isolated browser tab,
// quiesces it and extracts DOM, layout, accessibility and pixel snapshots.
package capture

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/catalog"
	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/models"
	"github.com/ternarybob/pixelparity/internal/normalize"
)

//go:embed extract.js
var extractScript string

// Capturer captures render targets against one shared browser.
type Capturer struct {
	browser context.Context
	baseURL string
	config  *common.Config
	logger  arbor.ILogger

	pageLoad        time.Duration
	componentSettle time.Duration
	settleQuiet     time.Duration
	settleCap       time.Duration
	fontWait        time.Duration
	imageWait       time.Duration
	chartWait       time.Duration
}

// NewCapturer creates a capturer. browser must be a chromedp browser
// context; every capture opens its own tab from it.
func NewCapturer(browser context.Context, baseURL string, config *common.Config, logger arbor.ILogger) *Capturer {
	capture := config.Capture
	return &Capturer{
		browser:         browser,
		baseURL:         baseURL,
		config:          config,
		logger:          logger,
		pageLoad:        common.Duration(capture.PageLoadTimeout, 30*time.Second),
		componentSettle: common.Duration(capture.ComponentSettle, 3*time.Second),
		settleQuiet:     common.Duration(capture.SettleQuiet, 150*time.Millisecond),
		settleCap:       common.Duration(capture.SettleCap, 2*time.Second),
		fontWait:        common.Duration(capture.FontWait, 3*time.Second),
		imageWait:       common.Duration(capture.ImageWait, 5*time.Second),
		chartWait:       common.Duration(capture.ChartWait, 5*time.Second),
	}
}

// pageState is read once the capture root or error page is present.
type pageState struct {
	HasRoot      bool    `json:"hasRoot"`
	HasErrorPage bool    `json:"hasErrorPage"`
	Fatal        *string `json:"fatal"`
}

type extraction struct {
	HasRoot bool                 `json:"hasRoot"`
	DOM     *models.DOMNode      `json:"dom"`
	Layout  []models.LayoutEntry `json:"layout"`
}

// Capture loads target in a fresh tab and returns its snapshot bundle.
// It never returns an error: failures are recorded in
// bundle.Runtime.CaptureError and leave the snapshots empty.
func (c *Capturer) Capture(ctx context.Context, target models.CaptureTarget, settle []string) *models.SnapshotBundle {
	startTime := time.Now()
	bundle := &models.SnapshotBundle{
		Target: target,
		URL:    target.URL(c.baseURL, c.config.Capture.Route),
	}

	tabCtx, closeTab := chromedp.NewContext(c.browser)
	defer closeTab()
	stopPropagation := context.AfterFunc(ctx, closeTab)
	defer stopPropagation()

	listenCtx, detach := context.WithCancel(tabCtx)
	defer detach()

	diag := &diagnostics{}
	err := ctx.Err()
	if err == nil {
		err = c.capture(tabCtx, listenCtx, diag, bundle, settle)
	}

	bundle.Runtime.PageErrors, bundle.Runtime.ConsoleErrors = diag.snapshot()
	if err != nil {
		c.fail(tabCtx, bundle, err)
	}
	if err := normalize.HashBundle(bundle); err != nil && bundle.Runtime.CaptureError == "" {
		bundle.Runtime.CaptureError = err.Error()
	}

	event := c.logger.Debug()
	if bundle.Runtime.CaptureError != "" {
		event = c.logger.Warn().Str("capture_error", bundle.Runtime.CaptureError)
	}
	event.
		Str("target", target.String()).
		Int("status", bundle.Runtime.Status).
		Bool("capture_root", bundle.Runtime.HasCaptureRoot).
		Int("page_errors", len(bundle.Runtime.PageErrors)).
		Dur("duration", time.Since(startTime)).
		Msg("Captured render target")

	return bundle
}

func (c *Capturer) capture(tabCtx, listenCtx context.Context, diag *diagnostics, bundle *models.SnapshotBundle, settle []string) error {
	browser := c.config.Browser
	capture := c.config.Capture

	// Page configuration. The first Run creates the tab and must not carry
	// a timeout, or the tab would close with it.
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetCacheDisabled(true),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": browser.Locale}),
		emulation.SetLocaleOverride().WithLocale(browser.Locale),
		emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: "light"},
			{Name: "prefers-reduced-motion", Value: "reduce"},
		}),
		chromedp.EmulateViewport(int64(browser.ViewportWidth), int64(browser.ViewportHeight),
			chromedp.EmulateScale(browser.DeviceScaleFactor)),
	); err != nil {
		return fmt.Errorf("configure page: %w", err)
	}

	diag.listen(listenCtx)

	if err := c.navigate(tabCtx, bundle); err != nil {
		return err
	}

	if err := c.awaitRoot(tabCtx, bundle); err != nil {
		return err
	}

	if err := chromedp.Run(tabCtx, evaluate(extractScript, nil)); err != nil {
		return fmt.Errorf("install extraction script: %w", err)
	}

	for _, name := range settle {
		if err := c.settle(tabCtx, name); err != nil {
			return err
		}
	}

	mutations := fmt.Sprintf("window.__parity.settleMutations(%s)", mustJSON(map[string]any{
		"root":    capture.RootSelector,
		"quietMs": c.settleQuiet.Milliseconds(),
		"capMs":   c.settleCap.Milliseconds(),
	}))
	if err := BestEffort(tabCtx, c.settleCap+time.Second, "mutation-quiet", c.logger, func(ctx context.Context) error {
		var quiet bool
		if err := chromedp.Run(ctx, evaluate(mutations, &quiet)); err != nil {
			return err
		}
		if !quiet {
			c.logger.Debug().Dur("settle_cap", c.settleCap).Msg("Root still mutating at cap, continuing")
		}
		return nil
	}); err != nil {
		return err
	}

	return c.extract(tabCtx, bundle)
}

// navigate loads bundle.URL and returns once the document has been parsed.
// It does not wait for the load event: a subresource that never finishes
// must not fail the capture, extraction bounds image and font waits itself.
func (c *Capturer) navigate(tabCtx context.Context, bundle *models.SnapshotBundle) error {
	navCtx, cancel := context.WithTimeout(tabCtx, c.pageLoad)
	defer cancel()

	var (
		mu       sync.Mutex
		lastDoc  cdp.LoaderID
		statuses = make(map[cdp.LoaderID]int64)
		parsed   = make(map[cdp.LoaderID]bool)
	)
	notify := make(chan struct{}, 1)
	frame := mainFrame(navCtx)

	listenCtx, stop := context.WithCancel(navCtx)
	defer stop()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			if ev.Type != network.ResourceTypeDocument || ev.Response == nil || (frame != "" && ev.FrameID != "" && ev.FrameID != frame) {
				return
			}
			mu.Lock()
			lastDoc = ev.LoaderID
			statuses[ev.LoaderID] = ev.Response.Status
			mu.Unlock()
		case *page.EventDomContentEventFired:
			// Only attributed to a loader that delivered a document, so the
			// initial about:blank never counts.
			mu.Lock()
			if lastDoc != "" {
				parsed[lastDoc] = true
			}
			mu.Unlock()
			select {
			case notify <- struct{}{}:
			default:
			}
		}
	})

	var loaderID cdp.LoaderID
	if err := chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, id, errorText, _, err := page.Navigate(bundle.URL).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		loaderID = id
		return nil
	})); err != nil {
		return fmt.Errorf("navigate to %s: %w", bundle.URL, err)
	}

	for {
		mu.Lock()
		done, status := parsed[loaderID], statuses[loaderID]
		mu.Unlock()
		if done {
			bundle.Runtime.Status = int(status)
			return nil
		}
		select {
		case <-navCtx.Done():
			return fmt.Errorf("navigate to %s: document not parsed: %w", bundle.URL, navCtx.Err())
		case <-notify:
		}
	}
}

// mainFrame returns the tab's top-level frame id, which Chrome gives the
// same value as the page target id.
func mainFrame(ctx context.Context) cdp.FrameID {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	return cdp.FrameID(c.Target.TargetID)
}

// awaitRoot waits for the capture root or the error page, whichever shows
// first, and records what the page shows.
func (c *Capturer) awaitRoot(tabCtx context.Context, bundle *models.SnapshotBundle) error {
	capture := c.config.Capture
	root, errorPage, tmpl := mustJSON(capture.RootSelector), mustJSON(capture.ErrorPageSelector), mustJSON(capture.ErrorTemplateSelector)

	present := fmt.Sprintf("!!(document.querySelector(%s) || document.querySelector(%s))", root, errorPage)
	var seen bool
	pollErr := chromedp.Run(tabCtx, chromedp.Poll(present, &seen,
		chromedp.WithPollingTimeout(c.pageLoad),
		chromedp.WithPollingInterval(50*time.Millisecond),
	))

	state := fmt.Sprintf(`(() => {
  const tmpl = document.querySelector(%s);
  const fatal = tmpl ? ((tmpl.content && tmpl.content.textContent) || tmpl.textContent || '').trim() : '';
  return {
    hasRoot: !!document.querySelector(%s),
    hasErrorPage: !!document.querySelector(%s),
    fatal: fatal || null,
  };
})()`, tmpl, root, errorPage)

	var ps pageState
	if err := chromedp.Run(tabCtx, evaluate(state, &ps)); err != nil {
		return fmt.Errorf("read page state: %w", err)
	}
	bundle.Runtime.HasCaptureRoot = ps.HasRoot
	bundle.Runtime.HasErrorPage = ps.HasErrorPage
	bundle.Runtime.FatalErrorMessage = ps.Fatal

	if pollErr != nil {
		if errors.Is(pollErr, chromedp.ErrPollingTimeout) {
			return fmt.Errorf("%w within %v", models.ErrCaptureRootMissing, c.pageLoad)
		}
		return fmt.Errorf("wait for capture root: %w", pollErr)
	}
	if !ps.HasRoot && !ps.HasErrorPage {
		return models.ErrCaptureRootMissing
	}
	return nil
}

// settle runs one component settle condition. Unknown names are ignored.
func (c *Capturer) settle(tabCtx context.Context, name string) error {
	var fn string
	switch name {
	case catalog.SettleChart:
		fn = "settleChart"
	case catalog.SettleCarousel:
		fn = "settleCarousel"
	case catalog.SettleAriaRoles:
		fn = "settleAriaRoles"
	default:
		c.logger.Warn().Str("settle", name).Msg("Unknown settle condition, skipping")
		return nil
	}

	expr := fmt.Sprintf("window.__parity.%s(%s)", fn, mustJSON(map[string]any{
		"root":      c.config.Capture.RootSelector,
		"timeoutMs": c.componentSettle.Milliseconds(),
		"samples":   c.config.Capture.StabilitySamples,
	}))
	return BestEffort(tabCtx, c.componentSettle+time.Second, name, c.logger, func(ctx context.Context) error {
		var settled bool
		if err := chromedp.Run(ctx, evaluate(expr, &settled)); err != nil {
			return err
		}
		if !settled {
			c.logger.Debug().Str("settle", name).Msg("Settle condition not reached, continuing")
		}
		return nil
	})
}

// extract runs the in-page extraction, then reads the accessibility tree
// and takes the screenshot.
func (c *Capturer) extract(tabCtx context.Context, bundle *models.SnapshotBundle) error {
	capture := c.config.Capture
	expr := fmt.Sprintf("window.__parity.extract(%s)", mustJSON(map[string]any{
		"root":             capture.RootSelector,
		"fontWaitMs":       c.fontWait.Milliseconds(),
		"imageWaitMs":      c.imageWait.Milliseconds(),
		"chartWaitMs":      c.chartWait.Milliseconds(),
		"stabilitySamples": capture.StabilitySamples,
	}))

	budget := c.pageLoad + c.fontWait + c.imageWait + c.chartWait
	extractCtx, cancel := context.WithTimeout(tabCtx, budget)
	defer cancel()

	var out extraction
	if err := chromedp.Run(extractCtx, evaluate(expr, &out)); err != nil {
		return fmt.Errorf("extract snapshots: %w", err)
	}
	if bundle.Runtime.HasCaptureRoot && !out.HasRoot {
		bundle.Runtime.HasCaptureRoot = false
		return fmt.Errorf("%w: removed before extraction", models.ErrCaptureRootMissing)
	}

	var rootNodes []*cdp.Node
	var axNodes []*accessibility.Node
	if err := chromedp.Run(extractCtx,
		chromedp.Nodes(capture.RootSelector, &rootNodes, chromedp.ByQuery, chromedp.AtLeast(0)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			axNodes, err = accessibility.GetFullAXTree().Do(ctx)
			return err
		}),
	); err != nil {
		return fmt.Errorf("accessibility snapshot: %w", err)
	}

	var backend cdp.BackendNodeID
	if len(rootNodes) > 0 {
		backend = rootNodes[0].BackendNodeID
	}
	tree := newAXTree(axNodes)

	var png []byte
	if len(rootNodes) > 0 {
		shotCtx, shotCancel := context.WithTimeout(extractCtx, 10*time.Second)
		err := chromedp.Run(shotCtx, chromedp.Screenshot(capture.RootSelector, &png, chromedp.ByQuery))
		shotCancel()
		if err != nil {
			c.logger.Debug().Err(err).Str("target", bundle.Target.String()).Msg("Root screenshot failed, using full page")
			png = nil
		}
	}
	if len(png) == 0 {
		if err := chromedp.Run(extractCtx, chromedp.FullScreenshot(&png, 100)); err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
	}

	bundle.DOM = out.DOM
	bundle.Layout = out.Layout
	bundle.Accessibility = tree.convert(tree.rootFor(backend))
	bundle.Screenshot = png
	return nil
}

// fail records err on the bundle, drops partial snapshots and tries a
// full-page screenshot for triage.
func (c *Capturer) fail(tabCtx context.Context, bundle *models.SnapshotBundle, err error) {
	bundle.Runtime.CaptureError = err.Error()
	bundle.DOM = nil
	bundle.Layout = nil
	bundle.Accessibility = nil
	bundle.Screenshot = nil

	var png []byte
	_ = BestEffort(tabCtx, 5*time.Second, "diagnostic-screenshot", c.logger, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.FullScreenshot(&png, 100))
	})
	bundle.Screenshot = png
}

func evaluate(expr string, res interface{}) chromedp.Action {
	return chromedp.Evaluate(expr, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("capture: marshal %T: %v", v, err))
	}
	return string(data)
}
