// Package orchestrate drives a pipeline run through its phases.
//
// A run moves through workspace, fetch, aggregate, publish, and merge. The
// main line of the dataset repository is only touched by the final merge, so
// any failure before that point leaves it untouched: the workspace is
// abandoned and the run ends failed.
package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gleaner/internal/clock"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/fetch"
	"github.com/mrz1836/gleaner/internal/git"
	"github.com/mrz1836/gleaner/internal/lease"
	"github.com/mrz1836/gleaner/internal/run"
	"github.com/mrz1836/gleaner/internal/workspace"
)

// Fetcher retrieves raw artifacts from all configured sources.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]domain.FetchResult, error)
}

// Aggregator merges raw artifacts into a normalized dataset.
type Aggregator interface {
	Aggregate(artifacts []*domain.RawArtifact) (*domain.AggregatedDataset, error)
}

// Publisher delivers a dataset to the external destination.
type Publisher interface {
	Publish(ctx context.Context, runID string, dataset *domain.AggregatedDataset) (int, error)
}

// Committer records workspace contents as a commit. Split out so tests can
// run the pipeline without a real git repository.
type Committer func(ctx context.Context, worktreePath, message string) error

// Orchestrator coordinates one pipeline run end to end.
type Orchestrator struct {
	runs       run.Store
	workspaces workspace.Manager
	fetcher    Fetcher
	aggregator Aggregator
	publisher  Publisher
	guard      lease.Lease
	commit     Committer
	clk        clock.Clock
	logger     zerolog.Logger
}

// Options configures an Orchestrator.
type Options struct {
	Runs       run.Store
	Workspaces workspace.Manager
	Fetcher    Fetcher
	Aggregator Aggregator
	Publisher  Publisher
	Guard      lease.Lease
	Commit     Committer
	Clock      clock.Clock
	Logger     zerolog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Commit == nil {
		opts.Commit = git.CommitAll
	}
	return &Orchestrator{
		runs:       opts.Runs,
		workspaces: opts.Workspaces,
		fetcher:    opts.Fetcher,
		aggregator: opts.Aggregator,
		publisher:  opts.Publisher,
		guard:      opts.Guard,
		commit:     opts.Commit,
		clk:        opts.Clock,
		logger:     opts.Logger,
	}
}

// Trigger starts a pipeline run.
//
// When another run holds the lease, Trigger returns ErrAlreadyRunning without
// creating any state: no run record, no workspace. The returned run is non-nil
// whenever a run record was created, including failed runs.
func (o *Orchestrator) Trigger(ctx context.Context, kind constants.TriggerKind) (*domain.Run, error) {
	if !constants.IsValidTriggerKind(kind) {
		return nil, fmt.Errorf("trigger kind %q: %w", kind, gleanererrors.ErrInvalidTriggerKind)
	}

	runID := run.NewID()

	if err := o.guard.Acquire(ctx, runID); err != nil {
		if errors.Is(err, gleanererrors.ErrLeaseHeld) {
			return nil, fmt.Errorf("another run is active: %w", gleanererrors.ErrAlreadyRunning)
		}
		return nil, err
	}
	defer func() {
		if releaseErr := o.guard.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			o.logger.Warn().Err(releaseErr).Msg("lease release failed")
		}
	}()

	r := &domain.Run{
		ID:        runID,
		Trigger:   kind,
		Status:    constants.RunStatusPending,
		StartedAt: o.clk.Now().UTC(),
	}
	if err := o.runs.Create(ctx, r); err != nil {
		return nil, err
	}

	r.Status = constants.RunStatusRunning
	o.transition(r, constants.PhaseTrigger, string(constants.RunStatusPending), string(constants.RunStatusRunning), string(kind))
	o.checkpoint(ctx, r)

	o.logger.Info().
		Str("run_id", runID).
		Str("trigger", string(kind)).
		Msg("run started")

	if err := o.execute(ctx, r); err != nil {
		return r, err
	}
	return r, nil
}

// Status returns the run with the given id, or the most recent run when
// runID is empty.
func (o *Orchestrator) Status(ctx context.Context, runID string) (*domain.Run, error) {
	if runID == "" {
		return o.runs.Latest(ctx)
	}
	return o.runs.Get(ctx, runID)
}

// execute walks the run through its phases and records the outcome.
func (o *Orchestrator) execute(ctx context.Context, r *domain.Run) error {
	// Workspace phase
	o.transition(r, constants.PhaseWorkspace, "", "open", "")
	ws, err := o.workspaces.Open(ctx, r.ID)
	if err != nil {
		return o.fail(ctx, r, nil, constants.PhaseWorkspace, err)
	}
	r.Workspace = ws.Name
	o.transition(r, constants.PhaseWorkspace, "open", "active", ws.Branch)
	o.checkpoint(ctx, r)

	// Fetch phase
	results, err := o.fetcher.FetchAll(ctx)
	if err != nil {
		return o.fail(ctx, r, ws, constants.PhaseFetch, err)
	}
	artifacts := fetch.Succeeded(results)
	r.FetchedCount = len(artifacts)
	o.transition(r, constants.PhaseFetch, "active", "fetched", fmt.Sprintf("%d of %d sources", len(artifacts), len(results)))
	o.checkpoint(ctx, r)

	if err = o.writeArtifacts(ws.WorktreePath, artifacts); err != nil {
		return o.fail(ctx, r, ws, constants.PhaseFetch, err)
	}

	// Aggregate phase
	dataset, err := o.aggregator.Aggregate(artifacts)
	if err != nil {
		return o.fail(ctx, r, ws, constants.PhaseAggregate, err)
	}
	o.transition(r, constants.PhaseAggregate, "fetched", "aggregated", fmt.Sprintf("%d records, %d skipped", dataset.RecordCount, dataset.SkippedCount))
	o.checkpoint(ctx, r)

	if err = o.writeDataset(ws.WorktreePath, dataset); err != nil {
		return o.fail(ctx, r, ws, constants.PhaseAggregate, err)
	}
	commitMsg := fmt.Sprintf("%s: dataset with %d records", r.ID, dataset.RecordCount)
	if err = o.commit(ctx, ws.WorktreePath, commitMsg); err != nil {
		return o.fail(ctx, r, ws, constants.PhaseAggregate, err)
	}

	// Publish phase
	attempts, err := o.publisher.Publish(ctx, r.ID, dataset)
	if err != nil {
		o.transition(r, constants.PhasePublish, "aggregated", "failed", fmt.Sprintf("after %d attempts", attempts))
		return o.fail(ctx, r, ws, constants.PhasePublish, err)
	}
	r.PublishedCount = dataset.RecordCount
	o.transition(r, constants.PhasePublish, "aggregated", "published", fmt.Sprintf("%d attempts", attempts))
	o.checkpoint(ctx, r)

	// Merge phase: only now does the main line change
	mergeMsg := fmt.Sprintf("merge %s: %d records published", r.ID, dataset.RecordCount)
	if err = o.workspaces.MergeAndClose(ctx, ws, mergeMsg); err != nil {
		return o.fail(ctx, r, ws, constants.PhaseMerge, err)
	}
	o.transition(r, constants.PhaseMerge, "published", "merged", "")

	now := o.clk.Now().UTC()
	r.Status = constants.RunStatusSucceeded
	r.EndedAt = &now
	if err = o.runs.Update(context.WithoutCancel(ctx), r); err != nil {
		return err
	}

	o.logger.Info().
		Str("run_id", r.ID).
		Int("records", r.PublishedCount).
		Dur("duration", r.Duration()).
		Msg("run succeeded")

	return nil
}

// fail abandons the workspace, marks the run failed, and returns the cause.
// Cleanup and persistence use a detached context so a canceled run still
// reaches its terminal state.
func (o *Orchestrator) fail(ctx context.Context, r *domain.Run, ws *domain.Workspace, phase constants.Phase, cause error) error {
	detached := context.WithoutCancel(ctx)

	if ws != nil {
		if abandonErr := o.workspaces.Abandon(detached, ws); abandonErr != nil {
			o.logger.Warn().Err(abandonErr).Str("run_id", r.ID).Msg("workspace abandon failed")
		}
	}

	now := o.clk.Now().UTC()
	r.Status = constants.RunStatusFailed
	r.EndedAt = &now
	r.FailurePhase = phase
	r.FailureKind = failureKind(cause)
	o.transition(r, phase, "", "failed", r.FailureKind)

	if updateErr := o.runs.Update(detached, r); updateErr != nil {
		o.logger.Error().Err(updateErr).Str("run_id", r.ID).Msg("failed to persist run failure")
	}

	o.logger.Error().
		Err(cause).
		Str("run_id", r.ID).
		Str("phase", string(phase)).
		Str("failure_kind", r.FailureKind).
		Msg("run failed")

	return cause
}

// transition appends a phase transition to the run record.
func (o *Orchestrator) transition(r *domain.Run, phase constants.Phase, from, to, detail string) {
	r.Transitions = append(r.Transitions, domain.Transition{
		Phase:  phase,
		From:   from,
		To:     to,
		At:     o.clk.Now().UTC(),
		Detail: detail,
	})
}

// checkpoint persists intermediate run state. Best effort: a checkpoint
// write failure is logged, never fails the run.
func (o *Orchestrator) checkpoint(ctx context.Context, r *domain.Run) {
	if err := o.runs.Update(ctx, r); err != nil {
		o.logger.Warn().Err(err).Str("run_id", r.ID).Msg("run checkpoint failed")
	}
}

// writeArtifacts stores each raw artifact in the workspace worktree.
func (o *Orchestrator) writeArtifacts(worktreePath string, artifacts []*domain.RawArtifact) error {
	dir := filepath.Join(worktreePath, constants.ArtifactsDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	for _, artifact := range artifacts {
		path := filepath.Join(dir, artifact.SourceID+".json")
		if err := os.WriteFile(path, artifact.Payload, 0o600); err != nil {
			return fmt.Errorf("failed to write artifact %s: %w", artifact.SourceID, err)
		}
	}
	return nil
}

// writeDataset stores the aggregated dataset in the workspace worktree.
func (o *Orchestrator) writeDataset(worktreePath string, dataset *domain.AggregatedDataset) error {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	data = append(data, '\n')
	path := filepath.Join(worktreePath, constants.DatasetFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

// failureKind maps an error onto the stable failure taxonomy recorded in
// run state and history.
func failureKind(err error) string {
	switch {
	case errors.Is(err, gleanererrors.ErrWorkspaceCollision):
		return "workspace_collision"
	case errors.Is(err, gleanererrors.ErrFetchAborted):
		return "fetch_aborted"
	case errors.Is(err, gleanererrors.ErrAggregationAborted):
		return "aggregation_aborted"
	case errors.Is(err, gleanererrors.ErrMalformedArtifact):
		return "malformed_artifact"
	case errors.Is(err, gleanererrors.ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, gleanererrors.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, gleanererrors.ErrTransientUpload):
		return "transient_upload"
	case errors.Is(err, gleanererrors.ErrSecretMissing):
		return "secret_missing"
	case errors.Is(err, gleanererrors.ErrGitOperation):
		return "git_operation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
