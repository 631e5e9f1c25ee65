// Package errors provides centralized error handling for GLEANER.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrAlreadyRunning indicates a trigger was rejected because another run
	// is active. This is not a pipeline correctness error; the operator
	// should wait and retry.
	ErrAlreadyRunning = errors.New("a run is already active")

	// ErrWorkspaceCollision indicates a workspace with the same name survives
	// from a prior run. This signals incomplete cleanup after a crash and
	// requires manual inspection; it is never silently overwritten.
	ErrWorkspaceCollision = errors.New("workspace collision: stale workspace exists")

	// ErrFetchAborted indicates the consecutive fetch failure threshold was
	// exceeded and the fetch phase was aborted.
	ErrFetchAborted = errors.New("fetch aborted: consecutive failure threshold exceeded")

	// ErrAggregationAborted indicates the malformed artifact skip ratio
	// exceeded the configured threshold, or no records survived aggregation.
	ErrAggregationAborted = errors.New("aggregation aborted")

	// ErrMalformedArtifact indicates a raw payload could not be parsed into
	// the expected record schema.
	ErrMalformedArtifact = errors.New("malformed artifact")

	// ErrAuthRejected indicates the publish secret was invalid or expired.
	// Non-retryable; surfaced to the operator.
	ErrAuthRejected = errors.New("publish authentication rejected")

	// ErrTransientUpload indicates a network or server issue during publish.
	// Retried with bounded exponential backoff before failing the run.
	ErrTransientUpload = errors.New("transient upload error")

	// ErrSchemaMismatch indicates the destination store expects a different
	// shape. Non-retryable and fatal to the run.
	ErrSchemaMismatch = errors.New("destination schema mismatch")

	// ErrSecretMissing indicates the publish secret could not be resolved.
	ErrSecretMissing = errors.New("publish secret not set")

	// ErrRunNotFound indicates the requested run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrWorkspaceNotFound indicates the requested workspace does not exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrWorkspaceCorrupted indicates the workspace state file is corrupted or unreadable.
	ErrWorkspaceCorrupted = errors.New("workspace state corrupted")

	// ErrGitOperation indicates a git command (init, worktree, merge, etc.)
	// failed during execution.
	ErrGitOperation = errors.New("git operation failed")

	// ErrLeaseHeld indicates the run lease is held by another process.
	ErrLeaseHeld = errors.New("run lease held")

	// ErrLeaseNotHeld indicates a release was attempted without holding the lease.
	ErrLeaseNotHeld = errors.New("run lease not held")

	// ErrInvalidTriggerKind indicates an unsupported trigger kind was supplied.
	ErrInvalidTriggerKind = errors.New("invalid trigger kind")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidFetch indicates an invalid fetch configuration value.
	ErrConfigInvalidFetch = errors.New("invalid fetch configuration")

	// ErrConfigInvalidAggregate indicates an invalid aggregate configuration value.
	ErrConfigInvalidAggregate = errors.New("invalid aggregate configuration")

	// ErrConfigInvalidPublish indicates an invalid publish configuration value.
	ErrConfigInvalidPublish = errors.New("invalid publish configuration")

	// ErrConfigInvalidSchedule indicates an invalid schedule configuration value.
	ErrConfigInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrConfigInvalidWorkspace indicates an invalid workspace configuration value.
	ErrConfigInvalidWorkspace = errors.New("invalid workspace configuration")

	// ErrConfigInvalidLease indicates an invalid lease configuration value.
	ErrConfigInvalidLease = errors.New("invalid lease configuration")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrSourceUnavailable indicates a single source fetch failed. Recorded
	// per item; only fatal when failures are consecutive past the threshold.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotADirectory indicates a path exists but is not a directory.
	ErrNotADirectory = errors.New("path is not a directory")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")
)
