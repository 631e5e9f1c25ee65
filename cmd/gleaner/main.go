// Package main provides the entry point for the gleaner CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/gleaner/internal/cli"
)

// Build metadata, injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx := context.Background()

	err := cli.Execute(ctx, cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	cli.CloseLogFile()

	os.Exit(cli.ExitCodeForError(err))
}
