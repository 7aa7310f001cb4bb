// Package environment brings up the application server and the browser
// once per run and tears both down afterwards.
package environment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/models"
)

// Controller owns the server subprocess and the browser for one run.
type Controller struct {
	config  *common.Config
	logger  arbor.ILogger
	logs    *LogBuffer
	baseURL string

	cmd     *exec.Cmd
	exited  chan struct{}
	mu      sync.Mutex
	exitErr error

	browser *Browser

	startOnce sync.Once
	startErr  error
	stopOnce  sync.Once
	stopErr   error
}

// NewController creates a controller. Nothing is started until Start.
func NewController(config *common.Config, logger arbor.ILogger) *Controller {
	return &Controller{
		config:  config,
		logger:  logger,
		logs:    &LogBuffer{},
		baseURL: config.ResolvedBaseURL(),
	}
}

// BaseURL returns the root URL of the application under test.
func (c *Controller) BaseURL() string {
	return c.baseURL
}

// Logs returns everything the build and server wrote so far.
func (c *Controller) Logs() string {
	return c.logs.String()
}

// StartedServer reports whether this controller launched its own server.
func (c *Controller) StartedServer() bool {
	return c.cmd != nil
}

// Browser returns the shared browser context. Nil before Start.
func (c *Controller) Browser() context.Context {
	if c.browser == nil {
		return nil
	}
	return c.browser.Context()
}

// Start builds and starts the server unless an external base URL is
// configured, waits until it answers, then launches the browser.
// Subsequent calls return the first call's result.
func (c *Controller) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.startErr = c.start(ctx)
	})
	return c.startErr
}

func (c *Controller) start(ctx context.Context) error {
	if c.config.ExternalServer() {
		c.logger.Info().Str("base_url", c.baseURL).Msg("Using external server, skipping build and start")
	} else {
		if err := c.build(ctx); err != nil {
			return err
		}
		if err := c.startServer(); err != nil {
			return err
		}
		if err := c.waitReady(ctx); err != nil {
			return err
		}
	}

	browser, err := LaunchBrowser(&c.config.Browser, c.logger)
	if err != nil {
		return err
	}
	c.browser = browser
	return nil
}

func (c *Controller) build(ctx context.Context) error {
	command := c.config.Server.BuildCommand
	if command == "" {
		return nil
	}

	c.logger.Info().Str("command", command).Str("work_dir", c.config.Server.WorkDir).Msg("Building application")
	c.logs.Printf("$ %s", command)

	startTime := time.Now()
	cmd := shellCommand(command)
	cmd.Dir = c.config.Server.WorkDir
	cmd.Stdout = c.logs
	cmd.Stderr = c.logs
	cmd.WaitDelay = 5 * time.Second // grandchildren may hold the output pipes open

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start build: %w", err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("build failed: %w\n%s", err, c.logs.String())
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("build interrupted: %w", ctx.Err())
	}

	c.logger.Info().Dur("duration", time.Since(startTime)).Msg("Build completed")
	return nil
}

func (c *Controller) startServer() error {
	command := c.config.Server.StartCommand
	if command == "" {
		return errors.New("server.start_command is required when no base_url is configured")
	}

	port := strconv.Itoa(c.config.Server.Port)
	c.logs.Printf("$ PORT=%s %s", port, command)

	cmd := shellCommand(command)
	cmd.Dir = c.config.Server.WorkDir
	cmd.Env = append(os.Environ(), "PORT="+port)
	cmd.Stdout = c.logs
	cmd.Stderr = c.logs
	cmd.WaitDelay = 5 * time.Second
	newProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server process: %w", err)
	}

	c.cmd = cmd
	c.exited = make(chan struct{})
	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		c.exitErr = err
		c.mu.Unlock()
		close(c.exited)
	}()

	c.logger.Info().
		Int("pid", cmd.Process.Pid).
		Str("base_url", c.baseURL).
		Msg("Server process started")
	return nil
}

// waitReady polls the base URL at a constant interval until it answers
// with a non-5xx status. Connection errors mean "not yet". It gives up when
// the startup timeout elapses or the process exits.
func (c *Controller) waitReady(ctx context.Context) error {
	timeout := common.Duration(c.config.Server.StartupTimeout, 3*time.Minute)
	interval := common.Duration(c.config.Server.PollInterval, 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	go func() {
		select {
		case <-c.exited:
			cancel()
		case <-ctx.Done():
		}
	}()

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = int(timeout/interval) + 1
	client.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration { return interval }
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = 5 * time.Second

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.baseURL, err)
	}

	startTime := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}

	if c.serverExited() {
		return fmt.Errorf("server exited before becoming ready: %v\n%s", c.processError(), c.logs.String())
	}
	if err != nil {
		return fmt.Errorf("server did not become ready within %v: %w\n%s", timeout, err, c.logs.String())
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server did not become ready within %v: last status %d\n%s", timeout, resp.StatusCode, c.logs.String())
	}

	c.logger.Info().
		Int("status", resp.StatusCode).
		Dur("took", time.Since(startTime)).
		Msg("Server ready")
	return nil
}

func (c *Controller) serverExited() bool {
	if c.exited == nil {
		return false
	}
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

func (c *Controller) processError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

// HealthCheck fails, carrying the full server log, if the server this
// controller started is no longer running.
func (c *Controller) HealthCheck() error {
	if !c.StartedServer() {
		return nil
	}
	if c.serverExited() {
		return fmt.Errorf("server exited during the run: %v\n%s", c.processError(), c.logs.String())
	}
	return nil
}

// Stop closes the browser, then terminates the server process group,
// escalating to SIGKILL after the shutdown grace period. Safe to call
// when nothing was started.
func (c *Controller) Stop() error {
	c.stopOnce.Do(func() {
		c.stopErr = c.stop()
	})
	return c.stopErr
}

func (c *Controller) stop() error {
	if c.browser != nil {
		c.browser.Close()
	}

	if c.cmd == nil || c.serverExited() {
		return nil
	}

	grace := common.Duration(c.config.Server.ShutdownGrace, 10*time.Second)
	c.logger.Info().Int("pid", c.cmd.Process.Pid).Dur("grace", grace).Msg("Stopping server")

	if err := terminate(c.cmd); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to signal server, killing")
		_ = kill(c.cmd)
		<-c.exited
		return nil
	}

	select {
	case <-c.exited:
	case <-time.After(grace):
		c.logger.Warn().Dur("grace", grace).Msg("Server ignored SIGTERM, sending SIGKILL")
		if err := kill(c.cmd); err != nil {
			return fmt.Errorf("failed to kill server: %w", err)
		}
		<-c.exited
	}

	c.logger.Info().Msg("Server stopped")
	return nil
}

// errNotStarted is returned by operations that need a running browser.
var errNotStarted = fmt.Errorf("environment: %w", models.ErrServerNotStarted)

// RequireBrowser returns the browser context or an error before Start.
func (c *Controller) RequireBrowser() (context.Context, error) {
	if ctx := c.Browser(); ctx != nil {
		return ctx, nil
	}
	return nil, errNotStarted
}
