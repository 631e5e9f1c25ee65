// Package cli provides the command-line interface for gleaner.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/gleaner/internal/schedule"
	"github.com/mrz1836/gleaner/internal/signal"
	"github.com/mrz1836/gleaner/internal/tui"
)

// AddServeCommand adds the serve command to the root command.
func AddServeCommand(root *cobra.Command) {
	root.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timer-triggered scheduler loop",
		Long: `Run the scheduler loop, triggering a pipeline run on startup and then
once per schedule interval. Ticks that land while a run is still active
are skipped. SIGINT or SIGTERM stops the loop; an in-flight run finishes
its current phase, abandons its workspace, and the process exits.

Examples:
  gleaner serve
  gleaner serve --interval 30m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()
			out := tui.NewOutput(os.Stdout, cmd.Flag("output").Value.String())

			h := signal.NewHandler(cmd.Context())
			defer h.Stop()

			p, err := buildPipeline(h.Context(), logger)
			if err != nil {
				out.Error(err)
				return err
			}

			tickEvery := p.cfg.Schedule.Interval
			if cmd.Flags().Changed("interval") {
				tickEvery = interval
			}

			s := schedule.New(p.orch, tickEvery, logger)
			return s.Run(h.Context())
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "override the schedule interval (e.g. 30m)")

	return cmd
}
