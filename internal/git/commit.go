// Package git provides Git operations for the GLEANER dataset repository.
// This file provides commit and merge operations.
package git

import (
	"context"

	"github.com/mrz1836/gleaner/internal/ctxutil"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// CommitAll stages every change in the worktree and commits it with the
// given message. Committing with no changes is an error surfaced to the
// caller, since a run that produced nothing should not merge.
func CommitAll(ctx context.Context, worktreePath, message string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if _, err := RunCommand(ctx, worktreePath, "add", "-A"); err != nil {
		return gleanererrors.Wrap(err, "failed to stage changes")
	}

	if _, err := RunCommand(ctx, worktreePath, "commit", "-m", message); err != nil {
		return gleanererrors.Wrap(err, "failed to commit changes")
	}

	return nil
}

// Merge merges branch into the current branch of repoPath with a
// history-preserving merge commit. Unrelated histories are tolerated so a
// workspace branch can merge even when the main line was re-created or
// diverged across crashes.
func Merge(ctx context.Context, repoPath, branch, message string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	_, err := RunCommand(ctx, repoPath,
		"merge", "--no-ff", "--allow-unrelated-histories",
		"-X", "theirs",
		"-m", message, branch)
	return gleanererrors.Wrapf(err, "failed to merge branch %q", branch)
}

// AbortMerge aborts an in-progress merge, restoring the pre-merge state.
// A conflicted merge otherwise leaves MERGE_HEAD behind and blocks every
// subsequent checkout.
func AbortMerge(ctx context.Context, repoPath string) error {
	_, err := RunCommand(ctx, repoPath, "merge", "--abort")
	return gleanererrors.Wrap(err, "failed to abort merge")
}

// Checkout switches repoPath's working tree to the named branch.
func Checkout(ctx context.Context, repoPath, branch string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	_, err := RunCommand(ctx, repoPath, "checkout", branch)
	return gleanererrors.Wrapf(err, "failed to checkout branch %q", branch)
}
