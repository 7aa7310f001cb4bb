package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/models"
)

func bundle(label string, v models.Variant) *models.SnapshotBundle {
	return &models.SnapshotBundle{
		Target:        models.CaptureTarget{Component: "button", Variant: v, Impl: label, Label: label},
		Runtime:       models.RuntimeDiagnostics{Status: 200, HasCaptureRoot: true},
		DOM:           &models.DOMNode{Type: models.NodeElement, Tag: "button"},
		Layout:        []models.LayoutEntry{{Path: "button[0]", Tag: "button", Style: map[string]string{}}},
		Accessibility: &models.AXNode{Role: "button", Name: "Save"},
		Screenshot:    []byte("\x89PNG"),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestArtifacts_WriteProducesTenFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "parity")
	a := NewArtifacts(root, arbor.NewLogger())
	require.NoError(t, a.Reset())

	dir, err := a.Write("button", bundle("react", models.VariantA), bundle("rescript", models.VariantB))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "button"), dir)

	assert.Equal(t, []string{
		"react-accessibility.json",
		"react-dom.json",
		"react-layout.json",
		"react-runtime.json",
		"react.png",
		"rescript-accessibility.json",
		"rescript-dom.json",
		"rescript-layout.json",
		"rescript-runtime.json",
		"rescript.png",
	}, listDir(t, dir))

	data, err := os.ReadFile(filepath.Join(dir, "react-runtime.json"))
	require.NoError(t, err)
	var rt map[string]any
	require.NoError(t, json.Unmarshal(data, &rt))
	assert.Equal(t, float64(200), rt["status"])
	assert.Contains(t, rt, "hasNextErrorPage")
	assert.Nil(t, rt["fatalErrorMessage"])
}

func TestArtifacts_SameLabelsFallBackToVariant(t *testing.T) {
	a := NewArtifacts(t.TempDir(), arbor.NewLogger())
	dir, err := a.Write("button", bundle("react", models.VariantA), bundle("react", models.VariantB))
	require.NoError(t, err)
	assert.Contains(t, listDir(t, dir), "a.png")
	assert.Contains(t, listDir(t, dir), "b.png")
}

func TestArtifacts_ResetClearsRoot(t *testing.T) {
	root := t.TempDir()
	a := NewArtifacts(root, arbor.NewLogger())
	_, err := a.Write("stale", bundle("react", models.VariantA), bundle("rescript", models.VariantB))
	require.NoError(t, err)

	require.NoError(t, a.Reset())
	assert.Empty(t, listDir(t, root))
}

func TestArtifacts_WriteStaysUnderRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "parity")
	victim := filepath.Join(parent, "victim")
	require.NoError(t, os.MkdirAll(victim, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(victim, "keep.txt"), []byte("x"), 0644))

	a := NewArtifacts(root, arbor.NewLogger())
	require.NoError(t, a.Reset())

	for _, component := range []string{"../victim", "..", "", ".", "nested/../../victim"} {
		_, err := a.Write(component, bundle("react", models.VariantA), bundle("rescript", models.VariantB))
		assert.Error(t, err, component)
	}

	assert.FileExists(t, filepath.Join(victim, "keep.txt"))
	assert.DirExists(t, root)
}

func TestArtifacts_RejectsLabelPaths(t *testing.T) {
	a := NewArtifacts(t.TempDir(), arbor.NewLogger())
	_, err := a.Write("button", bundle("../react", models.VariantA), bundle("rescript", models.VariantB))
	assert.Error(t, err)
}

func TestArtifacts_WriteOverwrites(t *testing.T) {
	a := NewArtifacts(t.TempDir(), arbor.NewLogger())
	dir, err := a.Write("button", bundle("react", models.VariantA), bundle("rescript", models.VariantB))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leftover.txt"), []byte("x"), 0644))

	_, err = a.Write("button", bundle("react", models.VariantA), bundle("rescript", models.VariantB))
	require.NoError(t, err)
	assert.NotContains(t, listDir(t, dir), "leftover.txt")
}

func TestSummary_Write(t *testing.T) {
	s := NewSummary("run-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s.Add(models.Verdict{Component: "chart", Passed: false, Reasons: []string{"dom snapshot mismatch"}})
	s.Add(models.Verdict{Component: "button", Passed: true, AccessibilityMatch: true})

	passed, failed := s.Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)

	dir := t.TempDir()
	require.NoError(t, s.Write(dir))

	md, err := os.ReadFile(filepath.Join(dir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Parity run run-1")
	assert.Contains(t, string(md), "| button | pass | - | true |")
	assert.Contains(t, string(md), "| chart | **fail** | dom snapshot mismatch | false |")

	html, err := os.ReadFile(filepath.Join(dir, "summary.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")
	assert.Contains(t, string(html), "<strong>fail</strong>")
}
