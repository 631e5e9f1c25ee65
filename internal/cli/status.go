// Package cli provides the command-line interface for gleaner.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/tui"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command) {
	root.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show a run",
		Long: `Show a pipeline run: its status, trigger, phase transitions, and
counts. Without an argument the most recent run is shown.

Examples:
  gleaner status
  gleaner status run-550e8400-e29b-41d4-a716-446655440000
  gleaner status --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) > 0 {
				runID = args[0]
			}
			return runStatus(cmd, os.Stdout, runID)
		},
	}
}

func runStatus(cmd *cobra.Command, w io.Writer, runID string) error {
	out := tui.NewOutput(w, cmd.Flag("output").Value.String())

	runs, _, err := storesOnly()
	if err != nil {
		out.Error(err)
		return err
	}

	var r *domain.Run
	if runID == "" {
		r, err = runs.Latest(cmd.Context())
	} else {
		r, err = runs.Get(cmd.Context(), runID)
	}
	if err != nil {
		if runID == "" && errors.Is(err, gleanererrors.ErrRunNotFound) {
			out.Info("no runs recorded yet")
			return nil
		}
		out.Error(err)
		return err
	}

	if cmd.Flag("output").Value.String() == OutputJSON {
		return out.JSON(r)
	}

	_, _ = fmt.Fprintf(w, "Run:       %s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Status:    %s\n", tui.RenderRunStatus(r.Status))
	_, _ = fmt.Fprintf(w, "Trigger:   %s\n", r.Trigger)
	_, _ = fmt.Fprintf(w, "Started:   %s (%s)\n", r.StartedAt.Format(time.RFC3339), tui.FormatAge(r.StartedAt, time.Now()))
	if r.EndedAt != nil {
		_, _ = fmt.Fprintf(w, "Duration:  %s\n", tui.FormatDuration(r.Duration()))
	}
	if r.Workspace != "" {
		_, _ = fmt.Fprintf(w, "Workspace: %s\n", r.Workspace)
	}
	_, _ = fmt.Fprintf(w, "Fetched:   %d artifacts\n", r.FetchedCount)
	_, _ = fmt.Fprintf(w, "Published: %d records\n", r.PublishedCount)
	if r.FailurePhase != "" {
		_, _ = fmt.Fprintf(w, "Failure:   %s phase (%s)\n", r.FailurePhase, r.FailureKind)
	}

	if len(r.Transitions) > 0 {
		_, _ = fmt.Fprintln(w, "\nTransitions:")
		for _, tr := range r.Transitions {
			detail := ""
			if tr.Detail != "" {
				detail = " - " + tr.Detail
			}
			_, _ = fmt.Fprintf(w, "  %s  %-10s %s -> %s%s\n",
				tr.At.Format("15:04:05"), tr.Phase, tr.From, tr.To, detail)
		}
	}

	return nil
}
