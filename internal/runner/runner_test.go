package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/models"
)

// fakeCapturer returns a bundle per impl, hashing to the given DOM value.
type fakeCapturer struct {
	dom      map[string]string // impl -> DOM hash
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeCapturer) Capture(ctx context.Context, target models.CaptureTarget, _ []string) *models.SnapshotBundle {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	bundle := &models.SnapshotBundle{
		Target:  target,
		Runtime: models.RuntimeDiagnostics{Status: 200, HasCaptureRoot: true},
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		bundle.Runtime.CaptureError = ctx.Err().Error()
		return bundle
	}

	hash, ok := f.dom[target.Impl]
	if !ok {
		bundle.Runtime.HasErrorPage = true
	}
	bundle.Hashes = models.Hashes{DOM: hash, Pixel: hash, Accessibility: "ax"}
	return bundle
}

type fakeArtifacts struct {
	mu      sync.Mutex
	written []string
}

func (f *fakeArtifacts) Write(component string, _, _ *models.SnapshotBundle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, component)
	return "artifacts/" + component, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []models.RunRecord
}

func (f *fakeHistory) Record(_ context.Context, rec *models.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeHistory) Last(context.Context, string, int) ([]models.RunRecord, error) { return nil, nil }

func (f *fakeHistory) Drift(context.Context, string) (bool, error) { return false, nil }

func (f *fakeHistory) Close() error { return nil }

func scenario(id, implA, implB string) models.Scenario {
	return models.Scenario{
		ID: id,
		A:  models.Renderer{Impl: implA, Label: "react"},
		B:  models.Renderer{Impl: implB, Label: "rescript"},
	}
}

func testConfig() *common.Config {
	config := common.NewDefaultConfig()
	config.Suite.Concurrency = 2
	config.Suite.ComponentTimeout = "2s"
	return config
}

func TestCompareComponent(t *testing.T) {
	capturer := &fakeCapturer{dom: map[string]string{"button-a": "h1", "button-b": "h1", "chart-a": "h1", "chart-b": "h2"}}
	artifacts := &fakeArtifacts{}
	store := &fakeHistory{}
	r := New(capturer, artifacts, store, testConfig(), "http://localhost:3100", arbor.NewLogger())
	ctx := context.Background()

	pass := r.CompareComponent(ctx, scenario("button", "button-a", "button-b"))
	assert.True(t, pass.Passed)
	assert.Empty(t, pass.ArtifactDir)
	assert.Equal(t, "http://localhost:3100", pass.BaseURL)

	fail := r.CompareComponent(ctx, scenario("chart", "chart-a", "chart-b"))
	assert.False(t, fail.Passed)
	assert.Equal(t, []string{"dom snapshot mismatch", "pixel mismatch"}, fail.Reasons)
	assert.Equal(t, "artifacts/chart", fail.ArtifactDir)

	assert.Equal(t, []string{"chart"}, artifacts.written)
	require.Len(t, store.records, 2)
	assert.Equal(t, r.RunID(), store.records[0].RunID)
	assert.Equal(t, r.RunID()+"/chart", store.records[1].ID)
}

func TestCompareComponent_SmokeFailure(t *testing.T) {
	capturer := &fakeCapturer{dom: map[string]string{"ok": "h1"}}
	r := New(capturer, &fakeArtifacts{}, nil, testConfig(), "", arbor.NewLogger())

	v := r.CompareComponent(context.Background(), scenario("select", "ok", "missing"))
	assert.False(t, v.Passed)
	assert.True(t, v.SmokeFailed)
	assert.Equal(t, []string{"rescript smoke failed: rendered Next.js error page"}, v.Reasons)
}

func TestCompareComponent_TimeoutBecomesSmokeFailure(t *testing.T) {
	config := testConfig()
	config.Suite.ComponentTimeout = "50ms"
	capturer := &fakeCapturer{dom: map[string]string{"a": "h", "b": "h"}, delay: time.Second}
	r := New(capturer, &fakeArtifacts{}, nil, config, "", arbor.NewLogger())

	startTime := time.Now()
	v := r.CompareComponent(context.Background(), scenario("slow", "a", "b"))
	assert.Less(t, time.Since(startTime), 500*time.Millisecond)
	assert.False(t, v.Passed)
	assert.True(t, v.SmokeFailed)
	assert.Contains(t, v.Reasons[0], "capture error")
}

func TestRun_RespectsConcurrencyAndOrder(t *testing.T) {
	capturer := &fakeCapturer{
		dom:   map[string]string{"a": "h", "b": "h"},
		delay: 30 * time.Millisecond,
	}
	r := New(capturer, &fakeArtifacts{}, nil, testConfig(), "", arbor.NewLogger())

	worklist := []models.Scenario{
		scenario("alpha", "a", "b"),
		scenario("bravo", "a", "b"),
		scenario("charlie", "a", "b"),
		scenario("delta", "a", "b"),
		scenario("echo", "a", "b"),
	}
	verdicts := r.Run(context.Background(), worklist)

	require.Len(t, verdicts, len(worklist))
	for i, v := range verdicts {
		assert.Equal(t, worklist[i].ID, v.Component)
		assert.True(t, v.Passed)
	}
	// Two components in flight, two captures each.
	assert.LessOrEqual(t, capturer.maxSeen.Load(), int32(4))

	passed, failed := r.Summary().Counts()
	assert.Equal(t, 5, passed)
	assert.Equal(t, 0, failed)
}

func TestRun_PacesCaptureStarts(t *testing.T) {
	config := testConfig()
	config.Suite.CapturesPerSecond = 20
	capturer := &fakeCapturer{dom: map[string]string{"a": "h", "b": "h"}}
	r := New(capturer, &fakeArtifacts{}, nil, config, "", arbor.NewLogger())

	startTime := time.Now()
	r.Run(context.Background(), []models.Scenario{scenario("alpha", "a", "b"), scenario("bravo", "a", "b")})
	// Four captures at 20/s with a burst of one need at least 150ms.
	assert.GreaterOrEqual(t, time.Since(startTime), 140*time.Millisecond)
}
