// Package git provides Git operations for the GLEANER dataset repository.
// This file manages the main line repository that holds published snapshots.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// EnsureRepo makes sure the dataset repository exists at path with the given
// main branch. If the directory is not yet a git repository, it is initialized
// with an empty initial commit so worktrees can branch from a valid HEAD.
//
// The repository is the durable main line: it is only ever mutated by the
// workspace manager's merge operation.
func EnsureRepo(ctx context.Context, path, mainBranch string) error {
	if path == "" {
		return fmt.Errorf("repository path: %w", gleanererrors.ErrEmptyValue)
	}
	if mainBranch == "" {
		return fmt.Errorf("main branch: %w", gleanererrors.ErrEmptyValue)
	}

	if isRepo(ctx, path) {
		return nil
	}

	if err := os.MkdirAll(path, 0o750); err != nil {
		return gleanererrors.Wrap(err, "failed to create dataset directory")
	}

	if _, err := RunCommand(ctx, path, "init", "--initial-branch", mainBranch); err != nil {
		return gleanererrors.Wrap(err, "failed to initialize dataset repository")
	}

	// Snapshot commits are made by the pipeline itself, so the repository
	// carries its own identity instead of depending on the host's git config.
	if _, err := RunCommand(ctx, path, "config", "user.name", "gleaner"); err != nil {
		return gleanererrors.Wrap(err, "failed to configure repository identity")
	}
	if _, err := RunCommand(ctx, path, "config", "user.email", "gleaner@localhost"); err != nil {
		return gleanererrors.Wrap(err, "failed to configure repository identity")
	}

	// An initial commit is required so worktree branches have a base.
	if _, err := RunCommand(ctx, path, "commit", "--allow-empty", "-m", "initialize dataset"); err != nil {
		return gleanererrors.Wrap(err, "failed to create initial commit")
	}

	return nil
}

// isRepo returns true if path is the root of a git repository.
func isRepo(ctx context.Context, path string) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return false
	}
	_, err := RunCommand(ctx, path, "rev-parse", "--git-dir")
	return err == nil
}

// HeadCommit returns the SHA of the repository HEAD.
func HeadCommit(ctx context.Context, repoPath string) (string, error) {
	out, err := RunCommand(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", gleanererrors.Wrap(err, "failed to resolve HEAD")
	}
	return out, nil
}
