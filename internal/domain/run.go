// Package domain provides shared domain types for the GLEANER pipeline.
package domain

import (
	"time"

	"github.com/mrz1836/gleaner/internal/constants"
)

// Run represents one end-to-end execution of the pipeline.
//
// Example JSON representation:
//
//	{
//	    "id": "run-550e8400-e29b-41d4-a716-446655440000",
//	    "trigger": "timer",
//	    "status": "succeeded",
//	    "workspace": "run-20260826-101500",
//	    "started_at": "2026-08-26T10:15:00Z",
//	    "ended_at": "2026-08-26T10:21:42Z",
//	    "transitions": [...],
//	    "schema_version": 1
//	}
type Run struct {
	// ID is the unique identifier for the run.
	// Format: run-<uuid>
	ID string `json:"id"`

	// Trigger records what initiated the run (timer, manual, event).
	Trigger constants.TriggerKind `json:"trigger"`

	// Status represents the current state in the run lifecycle.
	Status constants.RunStatus `json:"status"`

	// Workspace is the name of the workspace owned by this run.
	// Empty until the workspace phase completes.
	Workspace string `json:"workspace,omitempty"`

	// StartedAt is when the run was created.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the run reached a terminal state (nil while active).
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// Transitions is the ordered list of phase transitions for observability.
	Transitions []Transition `json:"transitions,omitempty"`

	// FailurePhase names the phase that failed (empty on success).
	FailurePhase constants.Phase `json:"failure_phase,omitempty"`

	// FailureKind is the taxonomy kind of the failure, e.g.
	// "fetch_aborted" or "auth_rejected" (empty on success).
	FailureKind string `json:"failure_kind,omitempty"`

	// FetchedCount is the number of raw artifacts fetched successfully.
	FetchedCount int `json:"fetched_count"`

	// PublishedCount is the number of records published to the store.
	PublishedCount int `json:"published_count"`

	// SchemaVersion indicates the version of the Run struct schema.
	// This enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// Transition records one phase boundary of a run for observability.
type Transition struct {
	// Phase is the pipeline phase this transition belongs to.
	Phase constants.Phase `json:"phase"`

	// From is the phase-local state before the transition.
	From string `json:"from,omitempty"`

	// To is the phase-local state after the transition.
	To string `json:"to"`

	// At is when the transition occurred.
	At time.Time `json:"at"`

	// Detail is an optional human-readable note (e.g. item counts).
	Detail string `json:"detail,omitempty"`
}

// Active returns true while the run has not reached a terminal state.
func (r *Run) Active() bool {
	return !r.Status.IsTerminal()
}

// Duration returns the wall time between start and end, or zero while
// the run is still active.
func (r *Run) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
