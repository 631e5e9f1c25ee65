package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gleaner/internal/clock"
	"github.com/mrz1836/gleaner/internal/constants"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/git"
)

// newTestManager creates a manager backed by a real dataset repository and a
// file store, all under temp directories.
func newTestManager(t *testing.T) (*DefaultManager, string) {
	t.Helper()

	base := t.TempDir()
	repoPath := filepath.Join(base, "dataset")
	require.NoError(t, git.EnsureRepo(context.Background(), repoPath, constants.DefaultMainBranch))

	store, err := NewFileStore(filepath.Join(base, "workspaces"))
	require.NoError(t, err)

	mgr := NewManager(store, Options{
		RepoPath:     repoPath,
		WorktreesDir: filepath.Join(base, "worktrees"),
		NamePrefix:   "run",
		MainBranch:   constants.DefaultMainBranch,
		Clock:        clock.Fixed{T: time.Date(2026, 8, 26, 10, 15, 0, 0, time.UTC)},
	})

	return mgr, repoPath
}

// commitDataset writes and commits a dataset file inside the worktree.
func commitDataset(t *testing.T, worktreePath, content string) {
	t.Helper()

	path := filepath.Join(worktreePath, constants.DatasetFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, git.CommitAll(context.Background(), worktreePath, "add dataset"))
}

func TestManagerOpen(t *testing.T) {
	mgr, repoPath := newTestManager(t)
	ctx := context.Background()

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, ws)

	assert.Equal(t, "run-20260826-101500", ws.Name)
	assert.Equal(t, "run/20260826-101500", ws.Branch)
	assert.Equal(t, constants.WorkspaceStatusActive, ws.Status)
	assert.Equal(t, "run-1", ws.RunID)

	// Worktree directory exists and is a registered checkout
	info, err := os.Stat(ws.WorktreePath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	exists, err := git.BranchExists(ctx, repoPath, ws.Branch)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := mgr.Get(ctx, ws.Name)
	require.NoError(t, err)
	assert.Equal(t, ws.Name, got.Name)
}

func TestManagerOpenEmptyRunID(t *testing.T) {
	mgr, _ := newTestManager(t)

	ws, err := mgr.Open(context.Background(), "")
	assert.Nil(t, ws)
	require.Error(t, err)
	assert.ErrorIs(t, err, gleanererrors.ErrEmptyValue)
}

func TestManagerOpenCollision(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	// The fixed clock reproduces the same workspace name, so the surviving
	// state must surface as a collision rather than being overwritten.
	ws, err := mgr.Open(ctx, "run-2")
	assert.Nil(t, ws)
	require.Error(t, err)
	assert.ErrorIs(t, err, gleanererrors.ErrWorkspaceCollision)
}

func TestManagerOpenCollisionOnSurvivingBranch(t *testing.T) {
	mgr, repoPath := newTestManager(t)
	ctx := context.Background()

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	// Simulate a crash that left the branch behind but lost the state file
	// and worktree directory.
	require.NoError(t, mgr.store.Delete(ctx, ws.Name))
	require.NoError(t, git.RemoveWorktree(ctx, repoPath, ws.WorktreePath))

	_, err = mgr.Open(ctx, "run-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, gleanererrors.ErrWorkspaceCollision)
}

func TestManagerMergeAndClose(t *testing.T) {
	mgr, repoPath := newTestManager(t)
	ctx := context.Background()

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	commitDataset(t, ws.WorktreePath, `{"items":[{"sku":"a"}]}`)

	require.NoError(t, mgr.MergeAndClose(ctx, ws, "publish run-1"))

	// The main line now carries exactly the dataset that was published
	data, err := os.ReadFile(filepath.Join(repoPath, constants.DatasetFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"sku":"a"}]}`, string(data))

	// All workspace traces are gone
	_, err = os.Stat(ws.WorktreePath)
	assert.True(t, os.IsNotExist(err))

	exists, err := git.BranchExists(ctx, repoPath, ws.Branch)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = mgr.Get(ctx, ws.Name)
	assert.ErrorIs(t, err, gleanererrors.ErrWorkspaceNotFound)

	assert.Equal(t, constants.WorkspaceStatusMerged, ws.Status)
}

func TestManagerMergeConflictRestoresMainLine(t *testing.T) {
	mgr, repoPath := newTestManager(t)
	ctx := context.Background()

	// Seed the main line with a file the workspace will delete
	seed := filepath.Join(repoPath, "f.txt")
	require.NoError(t, os.WriteFile(seed, []byte("original"), 0o600))
	require.NoError(t, git.CommitAll(ctx, repoPath, "seed"))

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	// Delete in the workspace, modify on the main line: a modify/delete
	// conflict that no merge strategy option resolves.
	require.NoError(t, os.Remove(filepath.Join(ws.WorktreePath, "f.txt")))
	require.NoError(t, git.CommitAll(ctx, ws.WorktreePath, "drop f"))

	require.NoError(t, os.WriteFile(seed, []byte("diverged"), 0o600))
	require.NoError(t, git.CommitAll(ctx, repoPath, "diverge"))

	before, err := git.HeadCommit(ctx, repoPath)
	require.NoError(t, err)

	err = mgr.MergeAndClose(ctx, ws, "publish run-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gleanererrors.ErrGitOperation)

	// The aborted merge leaves no MERGE_HEAD and the main line unchanged,
	// so a later run can check out and merge normally.
	_, statErr := os.Stat(filepath.Join(repoPath, ".git", "MERGE_HEAD"))
	assert.True(t, os.IsNotExist(statErr))

	after, err := git.HeadCommit(ctx, repoPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, git.Checkout(ctx, repoPath, constants.DefaultMainBranch))
}

func TestManagerMergeAndCloseNilWorkspace(t *testing.T) {
	mgr, _ := newTestManager(t)

	err := mgr.MergeAndClose(context.Background(), nil, "publish")
	require.Error(t, err)
	assert.ErrorIs(t, err, gleanererrors.ErrEmptyValue)
}

func TestManagerAbandonNeverTouchesMainLine(t *testing.T) {
	mgr, repoPath := newTestManager(t)
	ctx := context.Background()

	before, err := git.HeadCommit(ctx, repoPath)
	require.NoError(t, err)

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	commitDataset(t, ws.WorktreePath, `{"items":[{"sku":"partial"}]}`)

	require.NoError(t, mgr.Abandon(ctx, ws))

	// Main line HEAD unchanged, dataset file never appeared
	after, err := git.HeadCommit(ctx, repoPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(filepath.Join(repoPath, constants.DatasetFileName))
	assert.True(t, os.IsNotExist(err))

	// Traces removed
	_, err = os.Stat(ws.WorktreePath)
	assert.True(t, os.IsNotExist(err))

	exists, err := git.BranchExists(ctx, repoPath, ws.Branch)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, constants.WorkspaceStatusAbandoned, ws.Status)
}

func TestManagerAbandonNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Abandon(context.Background(), nil))
}

func TestManagerCleanup(t *testing.T) {
	mgr, repoPath := newTestManager(t)
	ctx := context.Background()

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	require.NoError(t, mgr.Cleanup(ctx, ws.Name))

	_, err = os.Stat(ws.WorktreePath)
	assert.True(t, os.IsNotExist(err))

	exists, err := git.BranchExists(ctx, repoPath, ws.Branch)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = mgr.Get(ctx, ws.Name)
	assert.ErrorIs(t, err, gleanererrors.ErrWorkspaceNotFound)
}

func TestManagerCleanupUnknownName(t *testing.T) {
	mgr, _ := newTestManager(t)

	// Cleanup of a name with no surviving traces is a no-op, not an error
	require.NoError(t, mgr.Cleanup(context.Background(), "run-20991231-000000"))
}

func TestManagerList(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	list, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	ws, err := mgr.Open(ctx, "run-1")
	require.NoError(t, err)

	list, err = mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ws.Name, list[0].Name)
}
