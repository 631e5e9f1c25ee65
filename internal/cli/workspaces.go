// Package cli provides the command-line interface for gleaner.
package cli

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gleaner/internal/tui"
)

// AddWorkspacesCommand adds the workspaces command to the root command.
func AddWorkspacesCommand(root *cobra.Command) {
	root.AddCommand(newWorkspacesCmd())
}

func newWorkspacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List workspaces",
		Long: `List known workspaces, newest first.

A workspace that is still "active" with no running pipeline is stale and
can be removed with "gleaner cleanup <name>".

Examples:
  gleaner workspaces
  gleaner workspaces --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkspaces(cmd, os.Stdout)
		},
	}
}

func runWorkspaces(cmd *cobra.Command, w io.Writer) error {
	out := tui.NewOutput(w, cmd.Flag("output").Value.String())

	_, workspaces, err := storesOnly()
	if err != nil {
		out.Error(err)
		return err
	}

	list, err := workspaces.List(cmd.Context())
	if err != nil {
		out.Error(err)
		return err
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	if cmd.Flag("output").Value.String() == OutputJSON {
		return out.JSON(list)
	}

	if len(list) == 0 {
		out.Info("no workspaces")
		return nil
	}

	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "NAME", Width: 24},
		{Name: "BRANCH", Width: 22},
		{Name: "RUN", Width: 42},
		{Name: "AGE", Width: 8},
		{Name: "STATUS", Width: 10},
	})
	table.WriteHeader()

	now := time.Now()
	for _, ws := range list {
		table.WriteRow(
			ws.Name,
			ws.Branch,
			ws.RunID,
			tui.FormatAge(ws.CreatedAt, now),
			tui.RenderWorkspaceStatus(ws.Status),
		)
	}

	return nil
}
