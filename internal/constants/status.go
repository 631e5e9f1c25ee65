package constants

// RunStatus represents the state of a run in the GLEANER state machine.
// Status values use snake_case for JSON serialization compatibility.
type RunStatus string

// Run status constants define the valid states a run can be in.
// These follow the pipeline state machine:
//
//	Pending → Running
//	Running → Succeeded, Failed
const (
	// RunStatusPending indicates a run has been created but no phase has started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the pipeline is actively executing phases.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every phase completed and the workspace
	// was merged into the main line.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates an unrecoverable phase failure; the workspace
	// was abandoned and the main line was not touched.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the status is a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// TriggerKind identifies what initiated a run.
type TriggerKind string

// Trigger kind constants for the three supported trigger surfaces.
const (
	// TriggerKindTimer is a schedule-driven trigger emitted by `gleaner serve`.
	TriggerKindTimer TriggerKind = "timer"

	// TriggerKindManual is an operator-initiated trigger.
	TriggerKindManual TriggerKind = "manual"

	// TriggerKindEvent is an upstream-change trigger (e.g. a repository push hook).
	TriggerKindEvent TriggerKind = "event"
)

// ValidTriggerKinds returns the accepted trigger kinds for CLI validation.
func ValidTriggerKinds() []TriggerKind {
	return []TriggerKind{TriggerKindTimer, TriggerKindManual, TriggerKindEvent}
}

// IsValidTriggerKind reports whether kind is one of the supported triggers.
func IsValidTriggerKind(kind TriggerKind) bool {
	switch kind {
	case TriggerKindTimer, TriggerKindManual, TriggerKindEvent:
		return true
	default:
		return false
	}
}

// Phase identifies one stage of the pipeline. Phases execute strictly in
// order; a failure in any phase skips the remaining ones.
type Phase string

// Pipeline phases in execution order.
const (
	// PhaseTrigger admits the run: the lease is held and the run record
	// moves from pending to running.
	PhaseTrigger Phase = "trigger"

	// PhaseWorkspace opens the isolated workspace for the run.
	PhaseWorkspace Phase = "workspace"

	// PhaseFetch pulls raw artifacts from the configured sources.
	PhaseFetch Phase = "fetch"

	// PhaseAggregate merges raw artifacts into the dataset.
	PhaseAggregate Phase = "aggregate"

	// PhasePublish uploads the dataset to the durable store.
	PhasePublish Phase = "publish"

	// PhaseMerge merges the workspace into the main line and deletes it.
	PhaseMerge Phase = "merge"
)

// WorkspaceStatus represents the state of a workspace.
type WorkspaceStatus string

// Workspace status constants.
const (
	// WorkspaceStatusActive indicates the workspace is owned by a live run.
	WorkspaceStatusActive WorkspaceStatus = "active"

	// WorkspaceStatusMerged indicates the workspace was merged and deleted.
	WorkspaceStatusMerged WorkspaceStatus = "merged"

	// WorkspaceStatusAbandoned indicates the workspace was deleted without
	// merging after a failed run.
	WorkspaceStatusAbandoned WorkspaceStatus = "abandoned"
)

// Exit codes surfaced to whatever invoked the trigger.
const (
	// ExitSucceeded is returned when a run completes successfully.
	ExitSucceeded = 0

	// ExitFailed is returned when a run fails.
	ExitFailed = 1

	// ExitAlreadyRunning is returned when a trigger is rejected because
	// another run is active.
	ExitAlreadyRunning = 2
)
