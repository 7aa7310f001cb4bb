// Package catalog maps component identifiers to their two render strategies
// and checks the scenario set against the external component catalog.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/pixelparity/internal/models"
)

// Registry is the immutable set of scenarios, keyed by component id.
type Registry struct {
	byID map[string]models.Scenario
	ids  []string
}

// NewRegistry builds a registry. Duplicate ids are rejected, as are ids and
// labels that are not a single path element: both name artifact files.
func NewRegistry(scenarios ...models.Scenario) (*Registry, error) {
	r := &Registry{byID: make(map[string]models.Scenario, len(scenarios))}
	for _, s := range scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario with empty id")
		}
		if err := checkPathElement(s.ID); err != nil {
			return nil, fmt.Errorf("scenario id %q: %w", s.ID, err)
		}
		for _, label := range []string{s.A.Label, s.B.Label} {
			if label == "" {
				continue
			}
			if err := checkPathElement(label); err != nil {
				return nil, fmt.Errorf("scenario %q label %q: %w", s.ID, label, err)
			}
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario %q", s.ID)
		}
		r.byID[s.ID] = s
		r.ids = append(r.ids, s.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Resolve returns the scenario for id. No normalization is applied to id.
func (r *Registry) Resolve(id string) (models.Scenario, error) {
	s, ok := r.byID[id]
	if !ok {
		return models.Scenario{}, fmt.Errorf("%w: %q", models.ErrScenarioNotFound, id)
	}
	return s, nil
}

// Has reports whether a scenario exists for id.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs returns all scenario ids, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of scenarios.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Worklist returns the scenarios to run: the requested ids that resolve, or
// every scenario when nothing was requested. Unknown requested ids are
// reported by Check, not here.
func (r *Registry) Worklist(requested []string) []models.Scenario {
	ids := r.ids
	if len(requested) > 0 {
		seen := make(map[string]bool, len(requested))
		ids = nil
		for _, id := range requested {
			if r.Has(id) && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
	}

	out := make([]models.Scenario, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// checkPathElement rejects names that would escape or alias a directory
// when joined onto the artifacts root.
func checkPathElement(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("must be a single path element")
	}
	return nil
}
