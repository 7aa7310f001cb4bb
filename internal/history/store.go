// Package history keeps recent per-component verdicts across runs so that
// nondeterministic captures can be spotted.
package history

import (
	"context"
	"time"

	"github.com/ternarybob/pixelparity/internal/models"
)

// Store persists run records.
type Store interface {
	// Record saves one component verdict and prunes older runs.
	Record(ctx context.Context, rec *models.RunRecord) error
	// Last returns up to n most recent records for a component, newest first.
	Last(ctx context.Context, component string, n int) ([]models.RunRecord, error)
	// Drift reports whether either variant's DOM hash changed between the
	// two most recent runs of a component.
	Drift(ctx context.Context, component string) (bool, error)
	Close() error
}

// NoopStore is used when history is disabled.
type NoopStore struct{}

func (NoopStore) Record(context.Context, *models.RunRecord) error { return nil }

func (NoopStore) Last(context.Context, string, int) ([]models.RunRecord, error) { return nil, nil }

func (NoopStore) Drift(context.Context, string) (bool, error) { return false, nil }

func (NoopStore) Close() error { return nil }

// NewRecord builds the record for a verdict.
func NewRecord(runID string, v models.Verdict, startedAt time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:        runID + "/" + v.Component,
		RunID:     runID,
		Component: v.Component,
		StartedAt: startedAt,
		Passed:    v.Passed,
		Reasons:   v.Reasons,
		A:         v.A,
		B:         v.B,
	}
}

func drifted(records []models.RunRecord) bool {
	if len(records) < 2 {
		return false
	}
	latest, previous := records[0], records[1]
	return latest.A.DOM != previous.A.DOM || latest.B.DOM != previous.B.DOM
}
