package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gleaner/internal/clock"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/run"
	"github.com/mrz1836/gleaner/internal/workspace"
)

// fakeManager implements workspace.Manager without a git repository.
type fakeManager struct {
	worktreeBase string
	openErr      error
	mergeErr     error

	opened    int
	merged    []string
	abandoned []string
}

func (m *fakeManager) Open(_ context.Context, runID string) (*domain.Workspace, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	name := fmt.Sprintf("ws-%d", m.opened)
	path := filepath.Join(m.worktreeBase, name)
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, err
	}
	return &domain.Workspace{
		Name:         name,
		RunID:        runID,
		WorktreePath: path,
		Branch:       "run/" + name,
		Status:       constants.WorkspaceStatusActive,
	}, nil
}

func (m *fakeManager) MergeAndClose(_ context.Context, ws *domain.Workspace, _ string) error {
	if m.mergeErr != nil {
		return m.mergeErr
	}
	m.merged = append(m.merged, ws.Name)
	return nil
}

func (m *fakeManager) Abandon(_ context.Context, ws *domain.Workspace) error {
	m.abandoned = append(m.abandoned, ws.Name)
	return nil
}

func (m *fakeManager) Get(_ context.Context, _ string) (*domain.Workspace, error) {
	return nil, gleanererrors.ErrWorkspaceNotFound
}

func (m *fakeManager) List(_ context.Context) ([]*domain.Workspace, error) { return nil, nil }
func (m *fakeManager) Cleanup(_ context.Context, _ string) error           { return nil }

var _ workspace.Manager = (*fakeManager)(nil)

// fakeGuard implements lease.Lease with a settable held flag.
type fakeGuard struct {
	held     bool
	acquired int
	released int
}

func (g *fakeGuard) Acquire(_ context.Context, _ string) error {
	if g.held {
		return gleanererrors.ErrLeaseHeld
	}
	g.held = true
	g.acquired++
	return nil
}

func (g *fakeGuard) Release(_ context.Context) error {
	g.held = false
	g.released++
	return nil
}

type fakeFetcher struct {
	results []domain.FetchResult
	err     error
}

func (f *fakeFetcher) FetchAll(_ context.Context) ([]domain.FetchResult, error) {
	return f.results, f.err
}

type fakeAggregator struct {
	dataset *domain.AggregatedDataset
	err     error
}

func (a *fakeAggregator) Aggregate(_ []*domain.RawArtifact) (*domain.AggregatedDataset, error) {
	return a.dataset, a.err
}

type fakePublisher struct {
	attempts int
	err      error
	calls    int
}

func (p *fakePublisher) Publish(_ context.Context, _ string, _ *domain.AggregatedDataset) (int, error) {
	p.calls++
	return p.attempts, p.err
}

type fixture struct {
	orch      *Orchestrator
	runs      run.Store
	manager   *fakeManager
	guard     *fakeGuard
	fetcher   *fakeFetcher
	agg       *fakeAggregator
	publisher *fakePublisher
	commits   *[]string
}

func okResults() []domain.FetchResult {
	artifact := &domain.RawArtifact{SourceID: "s1", Payload: []byte(`{"items":[]}`)}
	return []domain.FetchResult{{SourceID: "s1", Artifact: artifact}}
}

func okDataset() *domain.AggregatedDataset {
	return &domain.AggregatedDataset{
		GeneratedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		RecordCount: 2,
		SKUs:        []string{"a", "b"},
		Records: []domain.Record{
			{SKU: "a", Title: "item a", Price: 100, SourceID: "s1"},
			{SKU: "b", Title: "item b", Price: 200, SourceID: "s1"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	runs, err := run.NewFileStore(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)

	manager := &fakeManager{worktreeBase: t.TempDir()}
	guard := &fakeGuard{}
	fetcher := &fakeFetcher{results: okResults()}
	agg := &fakeAggregator{dataset: okDataset()}
	publisher := &fakePublisher{attempts: 1}

	var commits []string
	orch := New(Options{
		Runs:       runs,
		Workspaces: manager,
		Fetcher:    fetcher,
		Aggregator: agg,
		Publisher:  publisher,
		Guard:      guard,
		Commit: func(_ context.Context, _, message string) error {
			commits = append(commits, message)
			return nil
		},
		Clock:  clock.Fixed{T: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
		Logger: zerolog.Nop(),
	})

	return &fixture{
		orch: orch, runs: runs, manager: manager, guard: guard,
		fetcher: fetcher, agg: agg, publisher: publisher, commits: &commits,
	}
}

func TestTriggerSucceeds(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	r, err := fx.orch.Trigger(ctx, constants.TriggerKindManual)
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, constants.RunStatusSucceeded, r.Status)
	assert.Equal(t, 1, r.FetchedCount)
	assert.Equal(t, 2, r.PublishedCount)
	assert.NotNil(t, r.EndedAt)
	assert.Empty(t, fx.manager.abandoned)
	assert.Equal(t, []string{"ws-1"}, fx.manager.merged)
	assert.Len(t, *fx.commits, 1)
	assert.Equal(t, 1, fx.guard.released, "lease must be released after the run")

	stored, err := fx.runs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSucceeded, stored.Status)

	history, err := fx.runs.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestTriggerWritesArtifactsAndDataset(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, err := fx.orch.Trigger(context.Background(), constants.TriggerKindTimer)
	require.NoError(t, err)

	worktree := filepath.Join(fx.manager.worktreeBase, "ws-1")

	payload, err := os.ReadFile(filepath.Join(worktree, constants.ArtifactsDirName, "s1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(payload))

	data, err := os.ReadFile(filepath.Join(worktree, constants.DatasetFileName))
	require.NoError(t, err)
	var ds domain.AggregatedDataset
	require.NoError(t, json.Unmarshal(data, &ds))
	assert.Equal(t, []string{"a", "b"}, ds.SKUs)
}

// captureStore records the status each run record is created with.
type captureStore struct {
	run.Store
	createdWith []constants.RunStatus
}

func (s *captureStore) Create(ctx context.Context, r *domain.Run) error {
	s.createdWith = append(s.createdWith, r.Status)
	return s.Store.Create(ctx, r)
}

func TestTriggerCreatesRunPendingThenRunning(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	capture := &captureStore{Store: fx.runs}
	fx.orch.runs = capture

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindTimer)
	require.NoError(t, err)

	// The record is persisted pending first, then promoted to running
	require.Equal(t, []constants.RunStatus{constants.RunStatusPending}, capture.createdWith)

	require.NotEmpty(t, r.Transitions)
	first := r.Transitions[0]
	assert.Equal(t, constants.PhaseTrigger, first.Phase)
	assert.Equal(t, string(constants.RunStatusPending), first.From)
	assert.Equal(t, string(constants.RunStatusRunning), first.To)
}

func TestTriggerAlreadyRunning(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.guard.held = true

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindManual)
	require.ErrorIs(t, err, gleanererrors.ErrAlreadyRunning)
	assert.Nil(t, r)

	// No state mutated: no run record, no workspace
	runs, err := fx.runs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Equal(t, 0, fx.manager.opened)
}

func TestTriggerInvalidKind(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.orch.Trigger(context.Background(), constants.TriggerKind("cron"))
	require.ErrorIs(t, err, gleanererrors.ErrInvalidTriggerKind)
	assert.Equal(t, 0, fx.guard.acquired)
}

func TestTriggerFetchAbortAbandonsWorkspace(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.fetcher.err = fmt.Errorf("3 consecutive source failures: %w", gleanererrors.ErrFetchAborted)

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindTimer)
	require.ErrorIs(t, err, gleanererrors.ErrFetchAborted)
	require.NotNil(t, r)

	assert.Equal(t, constants.RunStatusFailed, r.Status)
	assert.Equal(t, constants.PhaseFetch, r.FailurePhase)
	assert.Equal(t, "fetch_aborted", r.FailureKind)
	assert.Equal(t, []string{"ws-1"}, fx.manager.abandoned)
	assert.Empty(t, fx.manager.merged, "a failed run must never reach the main line")
	assert.Equal(t, 1, fx.guard.released)
}

func TestTriggerAggregationAbortAbandonsWorkspace(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.agg.dataset = nil
	fx.agg.err = fmt.Errorf("zero records: %w", gleanererrors.ErrAggregationAborted)

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindManual)
	require.ErrorIs(t, err, gleanererrors.ErrAggregationAborted)
	assert.Equal(t, constants.PhaseAggregate, r.FailurePhase)
	assert.Equal(t, "aggregation_aborted", r.FailureKind)
	assert.Equal(t, []string{"ws-1"}, fx.manager.abandoned)
	assert.Empty(t, fx.manager.merged)
}

func TestTriggerPublishAuthRejectionAbandonsWorkspace(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.publisher.err = fmt.Errorf("%w: bad password", gleanererrors.ErrAuthRejected)
	fx.publisher.attempts = 1

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindManual)
	require.ErrorIs(t, err, gleanererrors.ErrAuthRejected)
	assert.Equal(t, constants.PhasePublish, r.FailurePhase)
	assert.Equal(t, "auth_rejected", r.FailureKind)
	assert.Equal(t, 1, fx.publisher.calls)
	assert.Equal(t, []string{"ws-1"}, fx.manager.abandoned)
	assert.Empty(t, fx.manager.merged)
}

func TestTriggerWorkspaceCollisionFailsWithoutMerge(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.manager.openErr = fmt.Errorf("branch survives: %w", gleanererrors.ErrWorkspaceCollision)

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindTimer)
	require.ErrorIs(t, err, gleanererrors.ErrWorkspaceCollision)
	require.NotNil(t, r)

	assert.Equal(t, constants.RunStatusFailed, r.Status)
	assert.Equal(t, constants.PhaseWorkspace, r.FailurePhase)
	assert.Equal(t, "workspace_collision", r.FailureKind)
	assert.Empty(t, fx.manager.merged)
	assert.Empty(t, fx.manager.abandoned, "nothing to abandon when open itself failed")
}

func TestTriggerMergeFailureMarksRunFailed(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.manager.mergeErr = fmt.Errorf("merge conflict: %w", gleanererrors.ErrGitOperation)

	r, err := fx.orch.Trigger(context.Background(), constants.TriggerKindManual)
	require.ErrorIs(t, err, gleanererrors.ErrGitOperation)
	assert.Equal(t, constants.PhaseMerge, r.FailurePhase)
	assert.Equal(t, "git_operation", r.FailureKind)

	// A failed merge abandons the workspace like every other failure, so no
	// branch or worktree survives the run.
	assert.Equal(t, []string{"ws-1"}, fx.manager.abandoned)
	assert.Empty(t, fx.manager.merged)
}

func TestStatusReturnsLatestRun(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.orch.Status(ctx, "")
	require.ErrorIs(t, err, gleanererrors.ErrRunNotFound)

	r, err := fx.orch.Trigger(ctx, constants.TriggerKindManual)
	require.NoError(t, err)

	latest, err := fx.orch.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, r.ID, latest.ID)

	byID, err := fx.orch.Status(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, byID.ID)
}

func TestFailureKindTaxonomy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "canceled", failureKind(context.Canceled))
	assert.Equal(t, "secret_missing", failureKind(fmt.Errorf("x: %w", gleanererrors.ErrSecretMissing)))
	assert.Equal(t, "transient_upload", failureKind(fmt.Errorf("x: %w", gleanererrors.ErrTransientUpload)))
	assert.Equal(t, "unknown", failureKind(fmt.Errorf("mystery")))
}
