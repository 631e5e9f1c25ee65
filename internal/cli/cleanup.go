// Package cli provides the command-line interface for gleaner.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/tui"
	"github.com/mrz1836/gleaner/internal/workspace"
)

// AddCleanupCommand adds the cleanup command to the root command.
func AddCleanupCommand(root *cobra.Command) {
	root.AddCommand(newCleanupCmd())
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <workspace-name>",
		Short: "Remove a stale workspace",
		Long: `Remove a stale workspace left behind by a crashed run.

The workspace's worktree and branch are removed without merging; any
uncommitted or unmerged data in it is discarded. The main dataset line
is never touched.

Examples:
  gleaner cleanup run-20260826-101500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, os.Stdout, args[0])
		},
	}
}

func runCleanup(cmd *cobra.Command, w io.Writer, name string) error {
	out := tui.NewOutput(w, cmd.Flag("output").Value.String())

	manager, err := buildManager(cmd)
	if err != nil {
		out.Error(err)
		return err
	}

	if err := manager.Cleanup(cmd.Context(), name); err != nil {
		out.Error(err)
		return err
	}

	out.Success(fmt.Sprintf("workspace %s removed", name))
	return nil
}

// buildManager wires just the workspace manager over the dataset repository,
// skipping the fetch/publish components the cleanup command never needs.
func buildManager(cmd *cobra.Command) (workspace.Manager, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, err
	}

	home, err := config.HomeDir()
	if err != nil {
		return nil, err
	}

	store, err := workspace.NewFileStore(filepath.Join(home, constants.WorkspacesDir))
	if err != nil {
		return nil, err
	}

	return workspace.NewManager(store, workspace.Options{
		RepoPath:     filepath.Join(home, constants.DatasetDir),
		WorktreesDir: filepath.Join(home, constants.WorktreesDir),
		NamePrefix:   cfg.Workspace.NamePrefix,
		MainBranch:   cfg.Workspace.MainBranch,
	}), nil
}
