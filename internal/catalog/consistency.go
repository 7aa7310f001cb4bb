package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Consistency is the result of checking scenarios against the component
// catalog and the requested filter. Each list is sorted.
type Consistency struct {
	Catalog          []string
	Scenarios        []string
	Requested        []string
	MissingScenarios []string // catalog entries without a scenario
	OrphanScenarios  []string // scenarios without a catalog entry
	UnknownRequested []string // requested ids absent from the catalog
}

// Check computes the three consistency sets. It never fails: drift is
// reported through the returned lists.
func Check(catalog []string, reg *Registry, requested []string) Consistency {
	inCatalog := make(map[string]bool, len(catalog))
	for _, id := range catalog {
		inCatalog[id] = true
	}

	c := Consistency{
		Catalog:   sortedCopy(catalog),
		Scenarios: reg.IDs(),
		Requested: sortedCopy(requested),
	}

	for _, id := range c.Catalog {
		if !reg.Has(id) {
			c.MissingScenarios = append(c.MissingScenarios, id)
		}
	}
	for _, id := range c.Scenarios {
		if !inCatalog[id] {
			c.OrphanScenarios = append(c.OrphanScenarios, id)
		}
	}
	for _, id := range c.Requested {
		if !inCatalog[id] {
			c.UnknownRequested = append(c.UnknownRequested, id)
		}
	}
	return c
}

// MissingReport describes missing scenarios, or returns "" when there are none.
func (c Consistency) MissingReport() string {
	if len(c.MissingScenarios) == 0 {
		return ""
	}
	return c.report("missing scenarios", c.MissingScenarios)
}

// OrphanReport describes orphan scenarios, or returns "" when there are none.
func (c Consistency) OrphanReport() string {
	if len(c.OrphanScenarios) == 0 {
		return ""
	}
	return c.report("orphan scenarios", c.OrphanScenarios)
}

// UnknownReport describes unknown requested components, or returns "" when there are none.
func (c Consistency) UnknownReport() string {
	if len(c.UnknownRequested) == 0 {
		return ""
	}
	return c.report("unknown requested components", c.UnknownRequested)
}

// OK reports whether all three checks pass.
func (c Consistency) OK() bool {
	return len(c.MissingScenarios) == 0 && len(c.OrphanScenarios) == 0 && len(c.UnknownRequested) == 0
}

func (c Consistency) report(title string, ids []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d): %s\n", title, len(ids), strings.Join(ids, ", "))
	fmt.Fprintf(&b, "catalog (%d): %s\n", len(c.Catalog), strings.Join(c.Catalog, ", "))
	fmt.Fprintf(&b, "scenarios (%d): %s", len(c.Scenarios), strings.Join(c.Scenarios, ", "))
	if len(c.Requested) > 0 {
		fmt.Fprintf(&b, "\nrequested (%d): %s", len(c.Requested), strings.Join(c.Requested, ", "))
	}
	return b.String()
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
