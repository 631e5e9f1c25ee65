package domain

import (
	"time"

	"github.com/mrz1836/gleaner/internal/constants"
)

// Workspace represents an isolated namespace for one run's in-progress
// artifacts. Each workspace corresponds to a git worktree on its own branch,
// merged into the main line only on full success.
//
// Example JSON representation:
//
//	{
//	    "name": "run-20260826-101500",
//	    "run_id": "run-550e8400-e29b-41d4-a716-446655440000",
//	    "worktree_path": "~/.gleaner/worktrees/run-20260826-101500/",
//	    "branch": "run/20260826-101500",
//	    "status": "active",
//	    "created_at": "2026-08-26T10:15:00Z",
//	    "updated_at": "2026-08-26T10:15:00Z",
//	    "schema_version": 1
//	}
type Workspace struct {
	// Name is the unique identifier for this workspace.
	Name string `json:"name"`

	// RunID links the workspace to the run that owns it.
	RunID string `json:"run_id"`

	// WorktreePath is the path to the git worktree for this workspace.
	// Typically: ~/.gleaner/worktrees/<name>/
	WorktreePath string `json:"worktree_path"`

	// Branch is the git branch this workspace operates on.
	Branch string `json:"branch"`

	// Status is the current state of the workspace.
	// Uses constants.WorkspaceStatus values (active, merged, abandoned).
	Status constants.WorkspaceStatus `json:"status"`

	// CreatedAt is when the workspace was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the workspace was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// SchemaVersion indicates the version of the Workspace struct schema.
	// This enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}
