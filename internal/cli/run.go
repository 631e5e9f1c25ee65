// Package cli provides the command-line interface for gleaner.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gleaner/internal/constants"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/signal"
	"github.com/mrz1836/gleaner/internal/tui"
)

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command) {
	root.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a pipeline run now",
		Long: `Trigger a pipeline run immediately.

The run fetches all configured sources, aggregates them into a dataset,
publishes it, and merges the snapshot into the dataset repository's main
line. If another run is already active the trigger is rejected and the
process exits with code 2.

The trigger kind is recorded on the run: use --kind=event when invoking
from an upstream-change hook.

Examples:
  gleaner run
  gleaner run --kind=event
  gleaner run --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			triggerKind := constants.TriggerKind(kind)
			if !constants.IsValidTriggerKind(triggerKind) {
				return fmt.Errorf("%w: %q must be one of %v",
					gleanererrors.ErrInvalidTriggerKind, kind, constants.ValidTriggerKinds())
			}
			return runPipeline(cmd.Context(), cmd, os.Stdout, triggerKind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(constants.TriggerKindManual), "trigger kind to record (timer|manual|event)")

	return cmd
}

func runPipeline(ctx context.Context, cmd *cobra.Command, w io.Writer, kind constants.TriggerKind) error {
	logger := GetLogger()
	out := tui.NewOutput(w, cmd.Flag("output").Value.String())

	// Ctrl+C cancels softly: the run observes it at the next phase boundary
	h := signal.NewHandler(ctx)
	defer h.Stop()

	p, err := buildPipeline(h.Context(), logger)
	if err != nil {
		out.Error(err)
		return err
	}

	r, err := p.orch.Trigger(h.Context(), kind)
	if err != nil {
		if r != nil {
			out.Error(fmt.Errorf("run %s failed in %s phase (%s)", r.ID, r.FailurePhase, r.FailureKind))
			if cmd.Flag("output").Value.String() == OutputJSON {
				_ = out.JSON(r)
			}
		} else {
			out.Error(err)
		}
		return err
	}

	out.Success(fmt.Sprintf("run %s published %d records", r.ID, r.PublishedCount))
	if cmd.Flag("output").Value.String() == OutputJSON {
		return out.JSON(r)
	}
	return nil
}
