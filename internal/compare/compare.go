// Package compare turns two snapshot bundles into a pass/fail verdict.
package compare

import (
	"fmt"
	"strings"

	"github.com/ternarybob/pixelparity/internal/models"
)

// Failure reasons for a structural comparison.
const (
	ReasonDOMMismatch   = "dom snapshot mismatch"
	ReasonPixelMismatch = "pixel mismatch"
)

// SmokeIssues lists everything that makes a capture unusable for
// comparison, in a fixed order. An empty result means the capture is sound.
func SmokeIssues(bundle *models.SnapshotBundle, label string) []string {
	if bundle == nil {
		return []string{fmt.Sprintf("%s smoke failed: no capture", label)}
	}

	rt := bundle.Runtime
	var issues []string
	if rt.CaptureError != "" {
		issues = append(issues, fmt.Sprintf("%s smoke failed: capture error: %s", label, rt.CaptureError))
	}
	if rt.Status >= 500 {
		issues = append(issues, fmt.Sprintf("%s smoke failed: HTTP status %d", label, rt.Status))
	}
	if !rt.HasCaptureRoot {
		issues = append(issues, fmt.Sprintf("%s smoke failed: capture root missing", label))
	}
	if rt.HasErrorPage {
		issues = append(issues, fmt.Sprintf("%s smoke failed: rendered Next.js error page", label))
	}
	if rt.FatalErrorMessage != nil && *rt.FatalErrorMessage != "" {
		issues = append(issues, fmt.Sprintf("%s smoke failed: fatal error: %s", label, *rt.FatalErrorMessage))
	}
	if len(rt.PageErrors) > 0 {
		issues = append(issues, fmt.Sprintf("%s smoke failed: page errors: %s", label, strings.Join(rt.PageErrors, " | ")))
	}
	return issues
}

// Compare produces the verdict for one component. Smoke failures on either
// side short-circuit the structural comparison. Only the DOM hash gates the
// verdict; accessibility equality is recorded for information.
func Compare(component string, a, b *models.SnapshotBundle, labelA, labelB string) models.Verdict {
	v := models.Verdict{
		Component: component,
		LabelA:    labelA,
		LabelB:    labelB,
	}
	if a != nil {
		v.A = a.Hashes
	}
	if b != nil {
		v.B = b.Hashes
	}

	smoke := append(SmokeIssues(a, labelA), SmokeIssues(b, labelB)...)
	if len(smoke) > 0 {
		v.Reasons = smoke
		v.SmokeFailed = true
		v.State = models.StateVerdictFail
		return v
	}

	v.AccessibilityMatch = v.A.Accessibility == v.B.Accessibility
	if v.A.DOM == v.B.DOM {
		v.Passed = true
		v.State = models.StateVerdictPass
		return v
	}

	v.Reasons = append(v.Reasons, ReasonDOMMismatch)
	if v.A.Pixel != v.B.Pixel {
		v.Reasons = append(v.Reasons, ReasonPixelMismatch)
	}
	v.State = models.StateVerdictFail
	return v
}

// Message renders a verdict as a multi-line assertion message.
func Message(v models.Verdict) string {
	var b strings.Builder
	status := "PASS"
	if !v.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "%s: %s\n", v.Component, status)
	for _, reason := range v.Reasons {
		fmt.Fprintf(&b, "  - %s\n", reason)
	}

	labelA, labelB := v.LabelA, v.LabelB
	if labelA == "" {
		labelA = string(models.VariantA)
	}
	if labelB == "" {
		labelB = string(models.VariantB)
	}
	fmt.Fprintf(&b, "  %-14s %-64s %s\n", "hash", labelA, labelB)
	rows := []struct {
		name string
		a, b string
	}{
		{"dom", v.A.DOM, v.B.DOM},
		{"layout", v.A.Layout, v.B.Layout},
		{"accessibility", v.A.Accessibility, v.B.Accessibility},
		{"pixel", v.A.Pixel, v.B.Pixel},
	}
	for _, row := range rows {
		marker := ""
		if row.a != row.b {
			marker = "  *"
		}
		fmt.Fprintf(&b, "  %-14s %-64s %s%s\n", row.name, orDash(row.a), orDash(row.b), marker)
	}

	if v.ArtifactDir != "" {
		fmt.Fprintf(&b, "  artifacts: %s\n", v.ArtifactDir)
	}
	if v.BaseURL != "" {
		fmt.Fprintf(&b, "  base url:  %s\n", v.BaseURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
