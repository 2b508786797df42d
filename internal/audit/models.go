// Package audit persists provisioning run history.
package audit

import "time"

// Run is one provisioning invocation against one application.
type Run struct {
	// ID is the run identifier, assigned by the runner.
	ID string

	// Account is the controller account the run targeted.
	Account string

	// Application is the monitored application name.
	Application string

	// Tier is the tier name, empty for synthetic runs.
	Tier string

	// Mode is the operation performed: onboard, create-healthrules,
	// update-thresholds, or teardown.
	Mode string

	Succeeded int
	Failed    int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Entry is the outcome of one resource within a run.
type Entry struct {
	RunID      string
	Kind       string
	Name       string
	Success    bool
	Status     int
	Message    string
	RecordedAt time.Time
}
