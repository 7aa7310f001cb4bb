package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/pixelparity/internal/models"
)

// Settle condition names understood by the capturer.
const (
	SettleChart     = "chart"
	SettleCarousel  = "carousel"
	SettleAriaRoles = "aria-roles"
)

var knownSettle = map[string]bool{
	SettleChart:     true,
	SettleCarousel:  true,
	SettleAriaRoles: true,
}

// scenarioFile is the on-disk shape of the scenario catalog.
type scenarioFile struct {
	Defaults struct {
		A models.Renderer `yaml:"a"`
		B models.Renderer `yaml:"b"`
	} `yaml:"defaults"`
	Scenarios []struct {
		ID     string           `yaml:"id"`
		A      *models.Renderer `yaml:"a"`
		B      *models.Renderer `yaml:"b"`
		Settle []string         `yaml:"settle"`
	} `yaml:"scenarios"`
}

// DefaultA and DefaultB are the renderers used when the file names none.
var (
	DefaultA = models.Renderer{Impl: "react", Label: "react"}
	DefaultB = models.Renderer{Impl: "rescript", Label: "rescript"}
)

// LoadScenarios reads a YAML scenario catalog and builds the registry.
func LoadScenarios(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	return ParseScenarios(data)
}

// ParseScenarios builds a registry from YAML catalog bytes.
func ParseScenarios(data []byte) (*Registry, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	defA := mergeRenderer(DefaultA, &file.Defaults.A)
	defB := mergeRenderer(DefaultB, &file.Defaults.B)

	scenarios := make([]models.Scenario, 0, len(file.Scenarios))
	for i, entry := range file.Scenarios {
		for _, name := range entry.Settle {
			if !knownSettle[name] {
				return nil, fmt.Errorf("scenario %d (%s): unknown settle condition %q", i, entry.ID, name)
			}
		}
		scenarios = append(scenarios, models.Scenario{
			ID:     entry.ID,
			A:      mergeRenderer(defA, entry.A),
			B:      mergeRenderer(defB, entry.B),
			Settle: entry.Settle,
		})
	}

	return NewRegistry(scenarios...)
}

func mergeRenderer(base models.Renderer, override *models.Renderer) models.Renderer {
	if override == nil {
		return base
	}
	if override.Impl != "" {
		base.Impl = override.Impl
		if override.Label == "" {
			base.Label = override.Impl
		}
	}
	if override.Label != "" {
		base.Label = override.Label
	}
	return base
}

// ListComponents derives the component catalog from a directory listing:
// every file in dir matching pattern becomes one kebab-case id.
func ListComponents(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid component pattern %q: %w", pattern, err)
	}

	seen := make(map[string]bool, len(matches))
	var ids []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		id := ComponentID(filepath.Base(match))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ComponentID converts a component file name to its catalog id:
// "MultiSelect.tsx" -> "multi-select", "date_picker.res" -> "date-picker".
func ComponentID(fileName string) string {
	base := fileName
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	var b strings.Builder
	runes := []rune(base)
	for i, r := range runes {
		switch {
		case r == '_' || r == ' ' || r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		case unicode.IsUpper(r):
			if i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "-") &&
				(unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
					(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}
