// Package publish delivers aggregated datasets to the external destination.
// This file implements the Publisher, which wraps a Sink with the retry
// policy for transient failures.
package publish

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/retry"
)

// Publisher delivers a dataset with bounded retries.
//
// Only transient failures are retried. Auth rejections and schema mismatches
// fail the publish on the first attempt, because repeating them changes
// nothing and hammers the destination with bad credentials.
type Publisher struct {
	sink     Sink
	archiver *Archiver
	cfg      config.PublishConfig
	logger   zerolog.Logger
}

// NewPublisher creates a Publisher over the given sink.
// archiver may be nil when snapshot archival is disabled.
func NewPublisher(sink Sink, archiver *Archiver, cfg config.PublishConfig, logger zerolog.Logger) *Publisher {
	return &Publisher{sink: sink, archiver: archiver, cfg: cfg, logger: logger}
}

// Publish delivers the dataset, retrying transient failures with exponential
// backoff. Returns the number of attempts made alongside any final error.
func (p *Publisher) Publish(ctx context.Context, runID string, dataset *domain.AggregatedDataset) (int, error) {
	retryCfg := retry.Config{
		MaxAttempts:  p.cfg.RetryAttempts,
		InitialDelay: p.cfg.RetryDelay,
		MaxDelay:     p.cfg.RetryMaxDelay,
		Multiplier:   2.0,
	}

	op := &retry.SimpleOperation[struct{}]{
		AttemptFunc: func(ctx context.Context, attempt int) (struct{}, bool, error) {
			err := p.sink.Deliver(ctx, runID, dataset)
			return struct{}{}, err == nil, err
		},
		ShouldRetryFunc: func(err error) bool {
			return errors.Is(err, gleanererrors.ErrTransientUpload)
		},
		OnRetryWaitFunc: func(attempt int, delay time.Duration) {
			p.logger.Warn().
				Int("attempt", attempt).
				Dur("retry_in", delay).
				Msg("transient publish failure, retrying")
		},
	}

	_, attempts, err := retry.Execute(ctx, retryCfg, op, p.logger)
	if err != nil {
		return attempts, err
	}

	p.logger.Info().
		Int("records", dataset.RecordCount).
		Int("attempts", attempts).
		Msg("dataset published")

	// Archival is best effort and never fails the run
	if p.archiver != nil {
		if archiveErr := p.archiver.Archive(ctx, runID, dataset); archiveErr != nil {
			p.logger.Warn().Err(archiveErr).Msg("snapshot archival failed")
		}
	}

	return attempts, nil
}
