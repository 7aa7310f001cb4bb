package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestSafeCall(t *testing.T) {
	logger := arbor.NewLogger()

	ran := false
	assert.True(t, SafeCall(logger, "ok", func() { ran = true }))
	assert.True(t, ran)

	assert.False(t, SafeCall(logger, "boom", func() { panic("boom") }))
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo(arbor.NewLogger(), "boom", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}
