package environment

import (
	"bytes"
	"fmt"
	"sync"
)

// LogBuffer is an append-only, concurrency-safe sink for server output.
// Its content is diagnostic only and never drives control flow.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Printf appends a formatted harness line.
func (b *LogBuffer) Printf(format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(&b.buf, format, args...)
	if n := b.buf.Len(); n > 0 && b.buf.Bytes()[n-1] != '\n' {
		b.buf.WriteByte('\n')
	}
}

// String returns everything written so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
