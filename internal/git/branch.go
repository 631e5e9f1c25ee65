// Package git provides Git operations for the GLEANER dataset repository.
// This file provides branch naming and lifecycle utilities.
package git

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"

	"github.com/mrz1836/gleaner/internal/ctxutil"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// branchNameRegex is used to sanitize branch names.
// It matches any character that is NOT a lowercase letter, digit, or hyphen.
var branchNameRegex = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeBranchName sanitizes a branch name by:
// - Converting to lowercase
// - Replacing non-alphanumeric characters with hyphens
// - Trimming leading/trailing hyphens
// - Collapsing consecutive hyphens
//
// Example: "Run 2026-08-26 10:15" -> "run-2026-08-26-10-15"
func SanitizeBranchName(name string) string {
	name = strings.ToLower(name)
	name = branchNameRegex.ReplaceAllString(name, "-")
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	return strings.Trim(name, "-")
}

// BranchExists checks if a local branch exists in the repository.
func BranchExists(ctx context.Context, repoPath, name string) (bool, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return false, err
	}

	_, err := RunCommand(ctx, repoPath, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	// show-ref exits non-zero when the ref is missing; that is not a failure
	if stderrors.Is(err, gleanererrors.ErrGitOperation) {
		return false, nil
	}
	return false, err
}

// DeleteBranch deletes a local branch. Force deletion is always used because
// workspace branches are deleted either after merging or when abandoning
// unmerged work.
func DeleteBranch(ctx context.Context, repoPath, name string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	_, err := RunCommand(ctx, repoPath, "branch", "-D", name)
	return gleanererrors.Wrapf(err, "failed to delete branch %q", name)
}
