package capture

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
)

// Wait runs cond under a deadline of timeout and reports whether it
// finished in time. Hitting the deadline is not an error; cancellation of
// ctx and any other error from cond are returned.
func Wait(ctx context.Context, timeout time.Duration, cond func(context.Context) error) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := cond(waitCtx)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case waitCtx.Err() != nil:
		return false, nil
	default:
		return false, err
	}
}

// BestEffort is Wait for quieting steps that must never fail a capture.
// Timeouts and condition errors are logged and dropped; only cancellation
// of ctx is returned.
func BestEffort(ctx context.Context, timeout time.Duration, name string, logger arbor.ILogger, cond func(context.Context) error) error {
	finished, err := Wait(ctx, timeout, cond)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logger.Debug().Err(err).Str("wait", name).Msg("Best-effort wait failed, continuing")
		return nil
	}
	if !finished {
		logger.Debug().Str("wait", name).Dur("timeout", timeout).Msg("Best-effort wait timed out, continuing")
	}
	return nil
}
