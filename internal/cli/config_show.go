// Package cli provides the command-line interface for gleaner.
package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/tui"
)

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	root.AddCommand(cmd)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration after merging defaults, config
files, and environment variables. Connection credentials are redacted.

Examples:
  gleaner config show
  gleaner config show --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, os.Stdout)
		},
	}
}

func runConfigShow(cmd *cobra.Command, w io.Writer) error {
	out := tui.NewOutput(w, cmd.Flag("output").Value.String())

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		out.Error(err)
		return err
	}

	// Never echo embedded credentials back to the terminal.
	redacted := *cfg
	redacted.Publish.DSN = redactURL(cfg.Publish.DSN)
	redacted.Lease.RedisURL = redactURL(cfg.Lease.RedisURL)

	if cmd.Flag("output").Value.String() == OutputJSON {
		return out.JSON(redacted)
	}

	data, err := yaml.Marshal(redacted)
	if err != nil {
		out.Error(err)
		return err
	}
	_, _ = fmt.Fprint(w, string(data))

	return nil
}

// redactURL masks any userinfo embedded in a connection URL. Values that
// do not parse as URLs are returned unchanged; they carry no userinfo.
func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
