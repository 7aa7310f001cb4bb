// Package probe fetches render targets over plain HTTP and inspects the
// server-rendered markup. It needs no browser and never decides a verdict.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/models"
)

// Result is what the server-rendered markup of one target reveals.
type Result struct {
	Target            models.CaptureTarget
	URL               string
	Status            int
	HasCaptureRoot    bool
	HasErrorPage      bool
	FatalErrorMessage string
	Err               error
}

// OK reports whether the markup looks renderable.
func (r Result) OK() bool {
	return r.Err == nil && r.Status < 500 && r.HasCaptureRoot && !r.HasErrorPage && r.FatalErrorMessage == ""
}

// String formats a one-line status for CLI output.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%-40s ERROR %v", r.Target, r.Err)
	}
	var notes []string
	if !r.HasCaptureRoot {
		notes = append(notes, "no capture root")
	}
	if r.HasErrorPage {
		notes = append(notes, "error page")
	}
	if r.FatalErrorMessage != "" {
		notes = append(notes, "fatal: "+r.FatalErrorMessage)
	}
	status := "ok"
	if !r.OK() {
		status = "FAIL"
	}
	return strings.TrimSpace(fmt.Sprintf("%-40s %3d %-4s %s", r.Target, r.Status, status, strings.Join(notes, ", ")))
}

// Prober issues the HTTP requests.
type Prober struct {
	client  *http.Client
	baseURL string
	capture *common.CaptureConfig
	locale  string
	logger  arbor.ILogger
}

// NewProber builds a prober against baseURL. Transient connection errors
// are retried a few times; HTTP error statuses are reported, not retried.
func NewProber(baseURL string, config *common.Config, logger arbor.ILogger) *Prober {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = common.Duration(config.Capture.PageLoadTimeout, 30*time.Second)

	return &Prober{
		client:  client.StandardClient(),
		baseURL: baseURL,
		capture: &config.Capture,
		locale:  config.Browser.Locale,
		logger:  logger,
	}
}

// Probe fetches one target and inspects its markup.
func (p *Prober) Probe(ctx context.Context, target models.CaptureTarget) Result {
	res := Result{Target: target, URL: target.URL(p.baseURL, p.capture.Route)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("Accept-Language", p.locale)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("failed to parse markup: %w", err)
		return res
	}

	res.HasCaptureRoot = doc.Find(p.capture.RootSelector).Length() > 0
	res.HasErrorPage = doc.Find(p.capture.ErrorPageSelector).Length() > 0
	if tmpl := doc.Find(p.capture.ErrorTemplateSelector).First(); tmpl.Length() > 0 {
		res.FatalErrorMessage = strings.TrimSpace(tmpl.Text())
	}

	p.logger.Debug().
		Str("target", target.String()).
		Int("status", res.Status).
		Bool("capture_root", res.HasCaptureRoot).
		Bool("error_page", res.HasErrorPage).
		Msg("Probed render target")
	return res
}
