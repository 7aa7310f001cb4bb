package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/pixelparity/internal/models"
)

const scenarioYAML = `
defaults:
  a: {impl: react, label: react}
  b: {impl: rescript, label: rescript}
scenarios:
  - id: button
  - id: chart
    settle: [chart]
  - id: combobox
    settle: [aria-roles]
    b: {impl: rescript-v2}
`

func TestParseScenarios(t *testing.T) {
	reg, err := ParseScenarios([]byte(scenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"button", "chart", "combobox"}, reg.IDs())

	combobox, err := reg.Resolve("combobox")
	require.NoError(t, err)
	assert.Equal(t, "react", combobox.A.Impl)
	assert.Equal(t, "rescript-v2", combobox.B.Impl)
	assert.Equal(t, "rescript-v2", combobox.B.Label)
	assert.Equal(t, []string{SettleAriaRoles}, combobox.Settle)

	chart, err := reg.Resolve("chart")
	require.NoError(t, err)
	assert.Equal(t, models.Renderer{Impl: "rescript", Label: "rescript"}, chart.Renderer(models.VariantB))
}

func TestParseScenarios_RejectsUnknownSettle(t *testing.T) {
	_, err := ParseScenarios([]byte("scenarios:\n  - id: slider\n    settle: [wobble]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wobble")
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(models.Scenario{ID: "button"}, models.Scenario{ID: "button"})
	require.Error(t, err)
}

func TestParseScenarios_RejectsPathLikeNames(t *testing.T) {
	for _, doc := range []string{
		"scenarios:\n  - id: ../victim\n",
		"scenarios:\n  - id: ui/button\n",
		"scenarios:\n  - id: '..'\n",
		"scenarios:\n  - id: 'ui\\\\button'\n",
		"scenarios:\n  - id: button\n    b: {impl: rescript, label: ../out}\n",
	} {
		_, err := ParseScenarios([]byte(doc))
		assert.Error(t, err, doc)
	}

	_, err := ParseScenarios([]byte("scenarios:\n  - id: date-picker\n    b: {impl: rescript-v2}\n"))
	assert.NoError(t, err)
}

func TestResolve_ExactMatchOnly(t *testing.T) {
	reg, err := NewRegistry(models.Scenario{ID: "button"})
	require.NoError(t, err)

	_, err = reg.Resolve("Button")
	assert.True(t, errors.Is(err, models.ErrScenarioNotFound))

	_, err = reg.Resolve(" button")
	assert.True(t, errors.Is(err, models.ErrScenarioNotFound))
}

func TestComponentID(t *testing.T) {
	cases := map[string]string{
		"Button.tsx":        "button",
		"MultiSelect.tsx":   "multi-select",
		"date_picker.res":   "date-picker",
		"HTMLInput.tsx":     "html-input",
		"alert-dialog.tsx":  "alert-dialog",
		"Chart.stories.tsx": "chart",
	}
	for in, want := range cases {
		assert.Equal(t, want, ComponentID(in), in)
	}
}

func TestListComponents(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Button.tsx", "Chart.tsx", "MultiSelect.tsx", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Nested.tsx"), 0755))

	ids, err := ListComponents(dir, "*.tsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"button", "chart", "multi-select"}, ids)
}

func TestCheck(t *testing.T) {
	reg, err := NewRegistry(
		models.Scenario{ID: "button"},
		models.Scenario{ID: "chart"},
		models.Scenario{ID: "legacy-widget"},
	)
	require.NoError(t, err)

	c := Check([]string{"chart", "button", "slider"}, reg, []string{"nonexistent-widget", "button"})

	assert.Equal(t, []string{"slider"}, c.MissingScenarios)
	assert.Equal(t, []string{"legacy-widget"}, c.OrphanScenarios)
	assert.Equal(t, []string{"nonexistent-widget"}, c.UnknownRequested)
	assert.False(t, c.OK())

	missing := c.MissingReport()
	assert.Contains(t, missing, "missing scenarios (1): slider")
	assert.Contains(t, missing, "catalog (3): button, chart, slider")
	assert.Contains(t, missing, "scenarios (3): button, chart, legacy-widget")

	assert.Contains(t, c.OrphanReport(), "orphan scenarios (1): legacy-widget")
	assert.Contains(t, c.UnknownReport(), "unknown requested components (1): nonexistent-widget")
}

func TestCheck_Clean(t *testing.T) {
	reg, err := NewRegistry(models.Scenario{ID: "button"})
	require.NoError(t, err)

	c := Check([]string{"button"}, reg, nil)
	assert.True(t, c.OK())
	assert.Empty(t, c.MissingReport())
	assert.Empty(t, c.OrphanReport())
	assert.Empty(t, c.UnknownReport())
}

func TestWorklist(t *testing.T) {
	reg, err := NewRegistry(
		models.Scenario{ID: "chart"},
		models.Scenario{ID: "button"},
		models.Scenario{ID: "combobox"},
	)
	require.NoError(t, err)

	all := reg.Worklist(nil)
	require.Len(t, all, 3)
	assert.Equal(t, "button", all[0].ID)

	filtered := reg.Worklist([]string{"combobox", "nonexistent-widget", "combobox"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "combobox", filtered[0].ID)
}
