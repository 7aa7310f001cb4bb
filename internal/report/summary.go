package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/pixelparity/internal/models"
)

// Summary collects verdicts during a run. Safe for concurrent use.
type Summary struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	verdicts  []models.Verdict
}

// NewSummary starts a summary for the given run.
func NewSummary(runID string, startedAt time.Time) *Summary {
	return &Summary{runID: runID, startedAt: startedAt}
}

// Add records a verdict.
func (s *Summary) Add(v models.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, v)
}

// Counts returns the number of passed and failed verdicts.
func (s *Summary) Counts() (passed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.verdicts {
		if v.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Markdown renders the summary as a markdown document.
func (s *Summary) Markdown() string {
	s.mu.Lock()
	verdicts := make([]models.Verdict, len(s.verdicts))
	copy(verdicts, s.verdicts)
	s.mu.Unlock()

	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].Component < verdicts[j].Component })

	passed, failed := 0, 0
	for _, v := range verdicts {
		if v.Passed {
			passed++
		} else {
			failed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Parity run %s\n\n", s.runID)
	fmt.Fprintf(&b, "Started %s. %d passed, %d failed.\n\n", s.startedAt.Format(time.RFC3339), passed, failed)
	b.WriteString("| Component | Result | Reasons | A11y match | Duration |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, v := range verdicts {
		result := "pass"
		if !v.Passed {
			result = "**fail**"
		}
		reasons := strings.ReplaceAll(strings.Join(v.Reasons, "; "), "|", "\\|")
		if reasons == "" {
			reasons = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %t | %s |\n",
			v.Component, result, reasons, v.AccessibilityMatch, v.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// Write renders summary.md and summary.html into dir.
func (s *Summary) Write(dir string) error {
	md := s.Markdown()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create summary dir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.md"), []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write summary.md: %w", err)
	}

	converter := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := converter.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("failed to render summary html: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Parity run %s</title></head><body>\n", s.runID)
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	if err := os.WriteFile(filepath.Join(dir, "summary.html"), page.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write summary.html: %w", err)
	}
	return nil
}
