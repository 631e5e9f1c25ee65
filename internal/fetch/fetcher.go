// Package fetch retrieves raw artifacts from configured external sources.
// This file implements the Fetcher, which walks the configured sources in
// order, paces requests, and enforces the consecutive-failure abort policy.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/ctxutil"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// Fetcher retrieves raw artifacts from all configured sources.
//
// Sources are fetched sequentially in configuration order with a rate-limit
// delay between requests. A failed source is skipped and the run continues,
// unless failures become consecutive: once the consecutive-failure count
// reaches the configured threshold the whole fetch phase aborts, since a
// failure streak usually means the network or the scraper itself is broken
// rather than individual sources being flaky.
type Fetcher struct {
	clients map[config.SourceKind]SourceClient
	cfg     config.FetchConfig
	logger  zerolog.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher dispatching to the given per-kind clients.
func NewFetcher(clients map[config.SourceKind]SourceClient, cfg config.FetchConfig, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		clients: clients,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// FetchAll retrieves artifacts from every configured source.
//
// The returned results preserve source order and include failed sources with
// their errors, so callers can report per-source outcomes. The error return
// is non-nil only when the phase aborts: on context cancellation, or when
// consecutive failures reach the threshold (wrapping ErrFetchAborted).
func (f *Fetcher) FetchAll(ctx context.Context) ([]domain.FetchResult, error) {
	results := make([]domain.FetchResult, 0, len(f.cfg.Sources))
	consecutive := 0

	for i, src := range f.cfg.Sources {
		if err := ctxutil.Canceled(ctx); err != nil {
			return results, err
		}

		// Pace requests after the first one
		if i > 0 && f.cfg.RateLimitDelay > 0 {
			if err := f.sleep(ctx, f.cfg.RateLimitDelay); err != nil {
				return results, err
			}
		}

		artifact, err := f.fetchOne(ctx, src)
		results = append(results, domain.FetchResult{SourceID: src.ID, Artifact: artifact, Err: err})

		if err != nil {
			consecutive++
			f.logger.Warn().
				Err(err).
				Str("source", src.ID).
				Int("consecutive_failures", consecutive).
				Msg("source fetch failed, skipping")

			if consecutive >= f.cfg.MaxConsecutiveFailures {
				return results, fmt.Errorf("%d consecutive source failures: %w",
					consecutive, gleanererrors.ErrFetchAborted)
			}
			continue
		}

		// A success breaks the failure streak
		consecutive = 0
		f.logger.Debug().
			Str("source", src.ID).
			Int("bytes", len(artifact.Payload)).
			Msg("source fetched")
	}

	return results, nil
}

// fetchOne dispatches a single source to the client for its kind.
// An unset kind means a plain HTTP source.
func (f *Fetcher) fetchOne(ctx context.Context, src config.Source) (*domain.RawArtifact, error) {
	kind := src.Kind
	if kind == "" {
		kind = config.SourceKindHTTP
	}
	client, ok := f.clients[kind]
	if !ok {
		return nil, fmt.Errorf("source %s: no client for kind %q: %w",
			src.ID, src.Kind, gleanererrors.ErrSourceUnavailable)
	}
	return client.Fetch(ctx, src)
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Succeeded filters results down to successfully fetched artifacts,
// preserving source order.
func Succeeded(results []domain.FetchResult) []*domain.RawArtifact {
	artifacts := make([]*domain.RawArtifact, 0, len(results))
	for _, res := range results {
		if res.Err == nil && res.Artifact != nil {
			artifacts = append(artifacts, res.Artifact)
		}
	}
	return artifacts
}
