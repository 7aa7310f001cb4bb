package models

import "time"

// ComponentState tracks one component through a comparison.
type ComponentState string

const (
	StatePending      ComponentState = "pending"
	StateCapturingA   ComponentState = "capturing-a"
	StateCapturingB   ComponentState = "capturing-b"
	StateBothCaptured ComponentState = "both-captured"
	StateSmokeFailed  ComponentState = "smoke-failed"
	StateCompared     ComponentState = "compared"
	StateVerdictPass  ComponentState = "verdict-pass"
	StateVerdictFail  ComponentState = "verdict-fail"
)

// Verdict is the outcome of comparing both variants of one component.
type Verdict struct {
	Component string
	Passed    bool
	Reasons   []string
	A         Hashes
	B         Hashes
	LabelA    string
	LabelB    string

	// AccessibilityMatch is informational and never gates Passed.
	AccessibilityMatch bool
	SmokeFailed        bool
	State              ComponentState
	ArtifactDir        string
	BaseURL            string
	Duration           time.Duration
}

// RunRecord is one component verdict persisted in the run history.
type RunRecord struct {
	ID        string `badgerhold:"key"`
	RunID     string `badgerholdIndex:"RunID"`
	Component string `badgerholdIndex:"Component"`
	StartedAt time.Time
	Passed    bool
	Reasons   []string
	A         Hashes
	B         Hashes
}
