// -----------------------------------------------------------------------
// Safe execution - panic-protected wrappers for scheduled work
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeCall runs fn and recovers a panic, logging it with its stack.
// It returns true when fn completed without panicking.
//
// Example:
//
//	common.SafeCall(logger, "scheduled-run", func() {
//	    runOnce(ctx)
//	})
func SafeCall(logger arbor.ILogger, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error().
				Str("task", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(buf[:n])).
				Msg("Recovered from panic - continuing")
			ok = false
		}
	}()

	fn()
	return true
}

// SafeGo runs fn in a goroutine through SafeCall.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go SafeCall(logger, name, fn)
}
