package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// hydrationMarkers identify hydration mismatch reports. Server rendering
// followed by client hydration produces these routinely; they say nothing
// about whether a component rendered.
var hydrationMarkers = []string{
	"hydration",
	"hydrating",
	"did not match. server:",
	"text content does not match server-rendered html",
	"minified react error #418",
	"minified react error #423",
	"minified react error #425",
}

// IsHydrationNoise reports whether msg is a hydration mismatch report.
func IsHydrationNoise(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range hydrationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// diagnostics collects page errors and console errors from CDP events.
type diagnostics struct {
	mu            sync.Mutex
	pageErrors    []string
	consoleErrors []string
}

// listen attaches the collector to the tab in ctx until ctx is cancelled.
func (d *diagnostics) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventExceptionThrown:
			d.addPageError(exceptionText(ev.ExceptionDetails))
		case *runtime.EventConsoleAPICalled:
			if ev.Type == runtime.APITypeError {
				d.addConsoleError(consoleText(ev.Args))
			}
		}
	})
}

func (d *diagnostics) addPageError(msg string) {
	if msg == "" || IsHydrationNoise(msg) {
		return
	}
	d.mu.Lock()
	d.pageErrors = append(d.pageErrors, msg)
	d.mu.Unlock()
}

func (d *diagnostics) addConsoleError(msg string) {
	if msg == "" || IsHydrationNoise(msg) {
		return
	}
	d.mu.Lock()
	d.consoleErrors = append(d.consoleErrors, msg)
	d.mu.Unlock()
}

// snapshot returns copies of both lists, never nil.
func (d *diagnostics) snapshot() (pageErrors, consoleErrors []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.pageErrors...), append([]string{}, d.consoleErrors...)
}

func exceptionText(details *runtime.ExceptionDetails) string {
	if details == nil {
		return ""
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if len(arg.Value) > 0 {
			var v any
			if err := json.Unmarshal([]byte(arg.Value), &v); err == nil {
				parts = append(parts, fmt.Sprint(v))
				continue
			}
		}
		if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}
