// Package cli provides the command-line interface for gleaner.
// This file assembles the pipeline dependency graph shared by the run and
// serve commands.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gleaner/internal/aggregate"
	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/fetch"
	"github.com/mrz1836/gleaner/internal/git"
	"github.com/mrz1836/gleaner/internal/lease"
	"github.com/mrz1836/gleaner/internal/orchestrate"
	"github.com/mrz1836/gleaner/internal/publish"
	"github.com/mrz1836/gleaner/internal/run"
	"github.com/mrz1836/gleaner/internal/workspace"
)

// pipeline bundles the assembled components for one gleaner process.
type pipeline struct {
	cfg        *config.Config
	orch       *orchestrate.Orchestrator
	runs       run.Store
	workspaces workspace.Manager
	guard      lease.Lease
}

// buildPipeline loads configuration and wires the full pipeline: stores,
// workspace manager over the dataset repository, source clients, publisher,
// and the run lease.
func buildPipeline(ctx context.Context, logger zerolog.Logger) (*pipeline, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	return buildPipelineWithConfig(ctx, cfg, logger)
}

// buildPipelineWithConfig wires the pipeline from an already-loaded config.
func buildPipelineWithConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pipeline, error) {
	home, err := config.HomeDir()
	if err != nil {
		return nil, err
	}

	runs, err := run.NewFileStore(filepath.Join(home, constants.RunsDir))
	if err != nil {
		return nil, err
	}

	wsStore, err := workspace.NewFileStore(filepath.Join(home, constants.WorkspacesDir))
	if err != nil {
		return nil, err
	}

	// The dataset repository holds the main line; created on first use
	repoPath := filepath.Join(home, constants.DatasetDir)
	if err = git.EnsureRepo(ctx, repoPath, cfg.Workspace.MainBranch); err != nil {
		return nil, err
	}

	manager := workspace.NewManager(wsStore, workspace.Options{
		RepoPath:     repoPath,
		WorktreesDir: filepath.Join(home, constants.WorktreesDir),
		NamePrefix:   cfg.Workspace.NamePrefix,
		MainBranch:   cfg.Workspace.MainBranch,
	})

	fetcher := fetch.NewFetcher(sourceClients(cfg.Fetch), cfg.Fetch, logger)
	aggregator := aggregate.New(cfg.Aggregate.MaxSkipRatio, logger)

	archiver, err := publish.NewArchiver(cfg.Publish.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to configure snapshot archival: %w", err)
	}
	sink := publish.NewPostgresSink(cfg.Publish.DSN, cfg.Publish.Table, publish.EnvSecretResolver)
	publisher := publish.NewPublisher(sink, archiver, cfg.Publish, logger)

	guard := buildLease(cfg.Lease, home)

	orch := orchestrate.New(orchestrate.Options{
		Runs:       runs,
		Workspaces: manager,
		Fetcher:    fetcher,
		Aggregator: aggregator,
		Publisher:  publisher,
		Guard:      guard,
		Logger:     logger,
	})

	return &pipeline{
		cfg:        cfg,
		orch:       orch,
		runs:       runs,
		workspaces: manager,
		guard:      guard,
	}, nil
}

// sourceClients builds the per-kind source clients.
func sourceClients(cfg config.FetchConfig) map[config.SourceKind]fetch.SourceClient {
	return map[config.SourceKind]fetch.SourceClient{
		config.SourceKindHTTP: fetch.NewHTTPClient(fetch.HTTPClientOptions{
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		}),
		config.SourceKindBrowser: fetch.NewBrowserClient(fetch.BrowserClientOptions{
			Timeout: cfg.Timeout,
		}),
		config.SourceKindMock: fetch.NewMockClient(nil),
	}
}

// buildLease picks the Redis lease when configured, the local file lease
// otherwise.
func buildLease(cfg config.LeaseConfig, home string) lease.Lease {
	if cfg.RedisURL != "" {
		return lease.NewRedisLease(cfg.RedisURL, cfg.TTL)
	}
	return lease.NewFileLease(filepath.Join(home, constants.LeaseFileName))
}

// storesOnly builds just the stores for read-only commands (status, history,
// workspaces) without touching the dataset repository or the lease.
func storesOnly() (run.Store, workspace.Store, error) {
	home, err := config.HomeDir()
	if err != nil {
		return nil, nil, err
	}

	runs, err := run.NewFileStore(filepath.Join(home, constants.RunsDir))
	if err != nil {
		return nil, nil, err
	}

	wsStore, err := workspace.NewFileStore(filepath.Join(home, constants.WorkspacesDir))
	if err != nil {
		return nil, nil, err
	}

	return runs, wsStore, nil
}
