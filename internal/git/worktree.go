// Package git provides Git operations for the GLEANER dataset repository.
// This file implements worktree operations for isolated workspace directories.
package git

import (
	"context"
	"strings"

	"github.com/mrz1836/gleaner/internal/ctxutil"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// AddWorktree creates a new worktree at path on a fresh branch created from
// baseBranch. The branch must not already exist; callers check for
// collisions before calling.
func AddWorktree(ctx context.Context, repoPath, path, branch, baseBranch string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	_, err := RunCommand(ctx, repoPath, "worktree", "add", path, "-b", branch, baseBranch)
	return gleanererrors.Wrapf(err, "failed to add worktree at %q", path)
}

// RemoveWorktree removes a worktree. Force removal is always used because
// abandoned worktrees may hold uncommitted or unmerged artifacts.
func RemoveWorktree(ctx context.Context, repoPath, path string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	_, err := RunCommand(ctx, repoPath, "worktree", "remove", "--force", path)
	return gleanererrors.Wrapf(err, "failed to remove worktree at %q", path)
}

// PruneWorktrees removes stale worktree metadata after manual deletion of
// worktree directories.
func PruneWorktrees(ctx context.Context, repoPath string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	_, err := RunCommand(ctx, repoPath, "worktree", "prune")
	return gleanererrors.Wrap(err, "failed to prune worktrees")
}

// ListWorktreePaths returns the absolute paths of all registered worktrees,
// including the main repository checkout.
func ListWorktreePaths(ctx context.Context, repoPath string) ([]string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	out, err := RunCommand(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, gleanererrors.Wrap(err, "failed to list worktrees")
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, rest)
		}
	}
	return paths, nil
}
