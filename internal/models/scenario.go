package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Variant tags one of the two interchangeable implementations of a component.
type Variant string

const (
	VariantA Variant = "a"
	VariantB Variant = "b"
)

// Variants lists both variants in capture order.
var Variants = []Variant{VariantA, VariantB}

// Renderer is one render strategy for a component: the impl query value the
// hosting app dispatches on, and a label used in failure reasons.
type Renderer struct {
	Impl  string `yaml:"impl" json:"impl"`
	Label string `yaml:"label" json:"label"`
}

// Scenario identifies one component under test and its two render entry points.
// Scenarios are built once from the catalog file and never mutated.
type Scenario struct {
	ID     string   `json:"id"`
	A      Renderer `json:"a"`
	B      Renderer `json:"b"`
	Settle []string `json:"settle,omitempty"` // component-specific settle conditions
}

// Renderer returns the render strategy for the variant.
func (s Scenario) Renderer(v Variant) Renderer {
	switch v {
	case VariantA:
		return s.A
	case VariantB:
		return s.B
	default:
		panic(fmt.Sprintf("unknown variant %q", v))
	}
}

// Target returns the capture target for one variant of the scenario.
func (s Scenario) Target(v Variant) CaptureTarget {
	r := s.Renderer(v)
	return CaptureTarget{Component: s.ID, Variant: v, Impl: r.Impl, Label: r.Label}
}

// CaptureTarget is a (component, variant) pair.
type CaptureTarget struct {
	Component string
	Variant   Variant
	Impl      string
	Label     string
}

// URL builds the render target URL: {base}{route}?component={id}&impl={impl}.
func (t CaptureTarget) URL(baseURL, route string) string {
	q := url.Values{}
	q.Set("component", t.Component)
	q.Set("impl", t.Impl)
	return strings.TrimRight(baseURL, "/") + route + "?" + q.Encode()
}

// FileStem returns the deterministic artifact file prefix for the target.
func (t CaptureTarget) FileStem() string {
	if t.Label != "" {
		return t.Label
	}
	return string(t.Variant)
}

// String implements fmt.Stringer.
func (t CaptureTarget) String() string {
	return fmt.Sprintf("%s[%s]", t.Component, t.Impl)
}
