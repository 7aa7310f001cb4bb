package models

import "errors"

var (
	// ErrScenarioNotFound is returned when a component id has no scenario.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrServerNotStarted is returned by server operations before Start.
	ErrServerNotStarted = errors.New("server not started")

	// ErrCaptureRootMissing is returned when neither the capture root nor an
	// error page marker appears in time.
	ErrCaptureRootMissing = errors.New("capture root did not appear")
)
