// Package workspace provides workspace isolation and persistence for GLEANER.
// This file implements the Manager which owns the workspace lifecycle: open an
// isolated branch for a run, merge it into the main line on success, or
// abandon it on failure so partial data never reaches the main line.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mrz1836/gleaner/internal/clock"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/ctxutil"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/git"
)

// Manager owns workspace lifecycle operations.
// It coordinates between the Store (state persistence) and the git layer
// (worktrees and branches on the dataset repository).
type Manager interface {
	// Open allocates a new isolated workspace for the run, branched from the
	// main line. Returns ErrWorkspaceCollision if a workspace of the same
	// name still exists from a prior run; stale workspaces indicate a crash
	// and require manual cleanup, never silent overwriting.
	Open(ctx context.Context, runID string) (*domain.Workspace, error)

	// MergeAndClose merges the workspace's committed changes into the main
	// line with a history-preserving merge, then deletes the workspace.
	// The main line is only ever mutated here.
	MergeAndClose(ctx context.Context, ws *domain.Workspace, message string) error

	// Abandon deletes the workspace without merging. Used on failure paths
	// where partial data must not reach the main line. Cleanup is best
	// effort and always succeeds; problems are logged as warnings.
	Abandon(ctx context.Context, ws *domain.Workspace) error

	// Get retrieves a workspace by name.
	// Returns ErrWorkspaceNotFound if not found.
	Get(ctx context.Context, name string) (*domain.Workspace, error)

	// List returns all known workspaces.
	List(ctx context.Context) ([]*domain.Workspace, error)

	// Cleanup force-removes a stale workspace by name after operator
	// inspection. It never merges.
	Cleanup(ctx context.Context, name string) error
}

// Options configures a DefaultManager.
type Options struct {
	// RepoPath is the dataset repository holding the main line.
	RepoPath string

	// WorktreesDir is where ephemeral worktrees are created.
	WorktreesDir string

	// NamePrefix prefixes workspace and branch names.
	NamePrefix string

	// MainBranch is the main line branch name.
	MainBranch string

	// Clock supplies timestamps for workspace naming.
	Clock clock.Clock
}

// DefaultManager implements Manager using Store and the git layer.
type DefaultManager struct {
	store Store
	opts  Options
}

// NewManager creates a new DefaultManager.
func NewManager(store Store, opts Options) *DefaultManager {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.NamePrefix == "" {
		opts.NamePrefix = constants.DefaultWorkspacePrefix
	}
	if opts.MainBranch == "" {
		opts.MainBranch = constants.DefaultMainBranch
	}
	return &DefaultManager{store: store, opts: opts}
}

// Open allocates a new isolated workspace for the run.
func (m *DefaultManager) Open(ctx context.Context, runID string) (*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if runID == "" {
		return nil, fmt.Errorf("failed to open workspace: run id %w", gleanererrors.ErrEmptyValue)
	}

	name := m.workspaceName()
	branch := m.branchName(name)
	wtPath := filepath.Join(m.opts.WorktreesDir, name)

	// Collision check covers all three traces a crashed run can leave:
	// store entry, branch, worktree directory.
	if err := m.checkCollision(ctx, name, branch, wtPath); err != nil {
		return nil, err
	}

	if err := git.AddWorktree(ctx, m.opts.RepoPath, wtPath, branch, m.opts.MainBranch); err != nil {
		return nil, gleanererrors.Wrapf(err, "failed to open workspace '%s'", name)
	}

	now := m.opts.Clock.Now()
	ws := &domain.Workspace{
		Name:         name,
		RunID:        runID,
		WorktreePath: wtPath,
		Branch:       branch,
		Status:       constants.WorkspaceStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.Create(ctx, ws); err != nil {
		// Roll back the worktree on store failure
		_ = git.RemoveWorktree(ctx, m.opts.RepoPath, wtPath)
		_ = git.DeleteBranch(ctx, m.opts.RepoPath, branch)
		return nil, gleanererrors.Wrapf(err, "failed to persist workspace '%s'", name)
	}

	log.Info().
		Str("workspace", name).
		Str("branch", branch).
		Str("run_id", runID).
		Msg("workspace opened")

	return ws, nil
}

// MergeAndClose merges the workspace into the main line and deletes it.
func (m *DefaultManager) MergeAndClose(ctx context.Context, ws *domain.Workspace, message string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if ws == nil {
		return fmt.Errorf("failed to merge workspace: %w", gleanererrors.ErrEmptyValue)
	}

	// The dataset repository stays checked out on the main branch; the merge
	// brings in the workspace branch with full history, tolerating unrelated
	// histories after a main line re-initialization.
	if err := git.Checkout(ctx, m.opts.RepoPath, m.opts.MainBranch); err != nil {
		return gleanererrors.Wrapf(err, "failed to merge workspace '%s'", ws.Name)
	}
	if err := git.Merge(ctx, m.opts.RepoPath, ws.Branch, message); err != nil {
		// A conflicted merge must not leave the main line mid-merge; restore
		// the pre-merge state so later runs can check out and merge again.
		if abortErr := git.AbortMerge(context.WithoutCancel(ctx), m.opts.RepoPath); abortErr != nil {
			log.Warn().Err(abortErr).Str("workspace", ws.Name).Msg("merge abort failed")
		}
		return gleanererrors.Wrapf(err, "failed to merge workspace '%s'", ws.Name)
	}

	ws.Status = constants.WorkspaceStatusMerged
	ws.UpdatedAt = m.opts.Clock.Now()

	// Cleanup after a successful merge is best effort: the main line already
	// has the data, so leftover metadata is logged rather than failing the run.
	var warnings []error
	m.removeWorktree(ctx, ws, &warnings)
	m.deleteBranch(ctx, ws, &warnings)
	m.deleteState(ctx, ws.Name, &warnings)

	for _, warn := range warnings {
		log.Warn().Err(warn).Str("workspace", ws.Name).Msg("merge cleanup warning")
	}

	log.Info().
		Str("workspace", ws.Name).
		Str("branch", ws.Branch).
		Msg("workspace merged into main line")

	return nil
}

// Abandon deletes the workspace without merging.
// Always succeeds; cleanup problems are collected and logged as warnings so
// a failing run can still reach its terminal state.
func (m *DefaultManager) Abandon(ctx context.Context, ws *domain.Workspace) error {
	if ws == nil {
		return nil
	}

	ws.Status = constants.WorkspaceStatusAbandoned
	ws.UpdatedAt = m.opts.Clock.Now()

	var warnings []error
	m.removeWorktree(ctx, ws, &warnings)
	m.pruneWorktrees(ctx, &warnings)
	m.deleteBranch(ctx, ws, &warnings)
	m.deleteState(ctx, ws.Name, &warnings)

	for _, warn := range warnings {
		log.Warn().Err(warn).Str("workspace", ws.Name).Msg("abandon warning")
	}

	log.Info().
		Str("workspace", ws.Name).
		Str("branch", ws.Branch).
		Msg("workspace abandoned")

	return nil
}

// Get retrieves a workspace by name.
func (m *DefaultManager) Get(ctx context.Context, name string) (*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, name)
}

// List returns all known workspaces.
func (m *DefaultManager) List(ctx context.Context) ([]*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	return m.store.List(ctx)
}

// Cleanup force-removes a stale workspace by name after operator inspection.
func (m *DefaultManager) Cleanup(ctx context.Context, name string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	ws, err := m.store.Get(ctx, name)
	if err != nil && !errors.Is(err, gleanererrors.ErrWorkspaceNotFound) {
		// Corrupted state still gets cleaned up; reconstruct enough to try.
		log.Warn().Err(err).Str("workspace", name).Msg("cleanup proceeding with partial state")
	}
	if ws == nil {
		ws = &domain.Workspace{
			Name:         name,
			Branch:       m.branchName(name),
			WorktreePath: filepath.Join(m.opts.WorktreesDir, name),
		}
	}

	return m.Abandon(ctx, ws)
}

// workspaceName generates a timestamped workspace name.
// The timestamp has second resolution; combined with the single-active-run
// invariant, two live workspaces can never share a name.
func (m *DefaultManager) workspaceName() string {
	return fmt.Sprintf("%s-%s", m.opts.NamePrefix, m.opts.Clock.Now().UTC().Format("20060102-150405"))
}

// branchName derives the ref name for a workspace. The prefix already acts
// as the ref namespace, so the workspace name's own prefix is dropped to
// avoid refs like run/run-<stamp>.
func (m *DefaultManager) branchName(name string) string {
	return m.opts.NamePrefix + "/" + git.SanitizeBranchName(strings.TrimPrefix(name, m.opts.NamePrefix+"-"))
}

// checkCollision surfaces any trace of a previous workspace with this name.
func (m *DefaultManager) checkCollision(ctx context.Context, name, branch, wtPath string) error {
	exists, err := m.store.Exists(ctx, name)
	if err != nil {
		return gleanererrors.Wrapf(err, "failed to check workspace '%s'", name)
	}
	if exists {
		return fmt.Errorf("workspace '%s' state file survives from a prior run: %w", name, gleanererrors.ErrWorkspaceCollision)
	}

	branchExists, err := git.BranchExists(ctx, m.opts.RepoPath, branch)
	if err != nil {
		return gleanererrors.Wrapf(err, "failed to check branch for workspace '%s'", name)
	}
	if branchExists {
		return fmt.Errorf("branch '%s' survives from a prior run: %w", branch, gleanererrors.ErrWorkspaceCollision)
	}

	if _, statErr := os.Stat(wtPath); statErr == nil {
		return fmt.Errorf("worktree directory '%s' survives from a prior run: %w", wtPath, gleanererrors.ErrWorkspaceCollision)
	}

	return nil
}

// removeWorktree removes the worktree directory, falling back to direct
// removal when git no longer knows about it.
func (m *DefaultManager) removeWorktree(ctx context.Context, ws *domain.Workspace, warnings *[]error) {
	if ws.WorktreePath == "" {
		return
	}

	if err := git.RemoveWorktree(ctx, m.opts.RepoPath, ws.WorktreePath); err == nil {
		return
	}

	// Fallback: manual directory removal plus prune of stale metadata.
	if err := removeOrphanedDirectory(ws.WorktreePath); err != nil {
		*warnings = append(*warnings, fmt.Errorf("warning: failed to remove worktree directory '%s': %w", ws.WorktreePath, err))
		return
	}
	if err := git.PruneWorktrees(ctx, m.opts.RepoPath); err != nil {
		*warnings = append(*warnings, fmt.Errorf("warning: failed to prune worktrees: %w", err))
	}
}

// pruneWorktrees prunes stale worktree metadata.
func (m *DefaultManager) pruneWorktrees(ctx context.Context, warnings *[]error) {
	if err := git.PruneWorktrees(ctx, m.opts.RepoPath); err != nil {
		*warnings = append(*warnings, fmt.Errorf("warning: failed to prune worktrees: %w", err))
	}
}

// deleteBranch deletes the workspace branch.
// Pruning must happen before deletion so git doesn't think a stale worktree
// is still using the branch.
func (m *DefaultManager) deleteBranch(ctx context.Context, ws *domain.Workspace, warnings *[]error) {
	if ws.Branch == "" {
		return
	}
	if err := git.DeleteBranch(ctx, m.opts.RepoPath, ws.Branch); err != nil {
		*warnings = append(*warnings, fmt.Errorf("warning: failed to delete branch: %w", err))
	}
}

// deleteState deletes the workspace state from the store.
func (m *DefaultManager) deleteState(ctx context.Context, name string, warnings *[]error) {
	if err := m.store.Delete(ctx, name); err != nil {
		if !errors.Is(err, gleanererrors.ErrWorkspaceNotFound) {
			*warnings = append(*warnings, fmt.Errorf("warning: failed to delete workspace state: %w", err))
		}
	}
}

// removeOrphanedDirectory removes a directory that is no longer a registered
// git worktree. Used as a fallback when git worktree remove fails.
func removeOrphanedDirectory(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // Already gone
	}
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", gleanererrors.ErrNotADirectory, path)
	}

	log.Info().Str("path", path).Msg("removing orphaned worktree directory")
	return os.RemoveAll(path)
}
