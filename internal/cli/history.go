// Package cli provides the command-line interface for gleaner.
package cli

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gleaner/internal/tui"
)

// AddHistoryCommand adds the history command to the root command.
func AddHistoryCommand(root *cobra.Command) {
	root.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed runs",
		Long: `List completed runs from the run history, most recent first.

Examples:
  gleaner history
  gleaner history --limit 5
  gleaner history --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, os.Stdout, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, w io.Writer, limit int) error {
	out := tui.NewOutput(w, cmd.Flag("output").Value.String())

	runs, _, err := storesOnly()
	if err != nil {
		out.Error(err)
		return err
	}

	history, err := runs.History(cmd.Context(), limit)
	if err != nil {
		out.Error(err)
		return err
	}

	if cmd.Flag("output").Value.String() == OutputJSON {
		return out.JSON(history)
	}

	if len(history) == 0 {
		out.Info("no completed runs yet")
		return nil
	}

	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "RUN", Width: 42},
		{Name: "TRIGGER", Width: 8},
		{Name: "STARTED", Width: 12},
		{Name: "DURATION", Width: 9},
		{Name: "RECORDS", Width: 8},
		{Name: "STATUS", Width: 14},
	})
	table.WriteHeader()

	now := time.Now()
	for _, r := range history {
		status := tui.RenderRunStatus(r.Status)
		if r.FailureKind != "" {
			status += " (" + r.FailureKind + ")"
		}
		table.WriteRow(
			r.ID,
			string(r.Trigger),
			tui.FormatAge(r.StartedAt, now),
			tui.FormatDuration(r.Duration()),
			formatCount(r.PublishedCount),
			status,
		)
	}

	return nil
}

// formatCount renders a count cell.
func formatCount(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}
