// Package report persists failure artifacts and the end-of-run summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/models"
)

// Artifacts writes per-component failure artifacts under a fixed root.
type Artifacts struct {
	root   string
	logger arbor.ILogger
}

// NewArtifacts creates an artifact writer rooted at root.
func NewArtifacts(root string, logger arbor.ILogger) *Artifacts {
	return &Artifacts{root: root, logger: logger}
}

// Root returns the artifacts root directory.
func (a *Artifacts) Root() string {
	return a.root
}

// Dir returns the artifact directory of a component.
func (a *Artifacts) Dir(component string) string {
	return filepath.Join(a.root, component)
}

// Reset removes everything under the root and recreates it empty.
// Called once at suite start.
func (a *Artifacts) Reset() error {
	if err := os.RemoveAll(a.root); err != nil {
		return fmt.Errorf("failed to clear artifacts dir %s: %w", a.root, err)
	}
	if err := os.MkdirAll(a.root, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts dir %s: %w", a.root, err)
	}
	return nil
}

// Write replaces the component's artifact directory with both bundles'
// screenshot and JSON snapshots, and returns the directory path.
func (a *Artifacts) Write(component string, bundleA, bundleB *models.SnapshotBundle) (string, error) {
	dir, err := a.componentDir(component)
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear artifact dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir %s: %w", dir, err)
	}

	stemA, stemB := stems(bundleA, bundleB)
	if filepath.Base(stemA) != stemA || filepath.Base(stemB) != stemB {
		return dir, fmt.Errorf("invalid artifact file stems %q, %q", stemA, stemB)
	}
	for _, item := range []struct {
		stem   string
		bundle *models.SnapshotBundle
	}{{stemA, bundleA}, {stemB, bundleB}} {
		if item.bundle == nil {
			continue
		}
		if err := writeBundle(dir, item.stem, item.bundle); err != nil {
			return dir, err
		}
	}

	a.logger.Debug().
		Str("component", component).
		Str("dir", dir).
		Msg("Wrote failure artifacts")
	return dir, nil
}

// componentDir resolves the component's directory and refuses anything
// that is not strictly below the root, since Write removes it first.
func (a *Artifacts) componentDir(component string) (string, error) {
	root := filepath.Clean(a.root)
	dir := filepath.Clean(filepath.Join(root, component))
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("artifact dir for component %q escapes %s", component, a.root)
	}
	return dir, nil
}

// stems returns the file prefixes for both bundles. Identical labels fall
// back to the variant letters so the two sides never overwrite each other.
func stems(bundleA, bundleB *models.SnapshotBundle) (string, string) {
	stemA, stemB := string(models.VariantA), string(models.VariantB)
	if bundleA != nil && bundleB != nil {
		la, lb := bundleA.Target.FileStem(), bundleB.Target.FileStem()
		if la != lb {
			stemA, stemB = la, lb
		}
	}
	return stemA, stemB
}

func writeBundle(dir, stem string, bundle *models.SnapshotBundle) error {
	if len(bundle.Screenshot) > 0 {
		if err := os.WriteFile(filepath.Join(dir, stem+".png"), bundle.Screenshot, 0644); err != nil {
			return fmt.Errorf("failed to write %s screenshot: %w", stem, err)
		}
	}

	files := []struct {
		suffix string
		value  any
	}{
		{"-runtime.json", bundle.Runtime},
		{"-dom.json", bundle.DOM},
		{"-layout.json", bundle.Layout},
		{"-accessibility.json", bundle.Accessibility},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal %s%s: %w", stem, f.suffix, err)
		}
		if err := os.WriteFile(filepath.Join(dir, stem+f.suffix), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s%s: %w", stem, f.suffix, err)
		}
	}
	return nil
}
