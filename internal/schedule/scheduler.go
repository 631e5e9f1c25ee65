// Package schedule drives timer-triggered pipeline runs.
//
// The scheduler fires a run immediately on startup and then once per
// configured interval. Ticks that land while a run is still active are
// skipped: the lease turns them into ErrAlreadyRunning, which the scheduler
// logs and moves past. A failed run never stops the loop; the next tick
// simply tries again.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// Triggerer starts a pipeline run.
type Triggerer interface {
	Trigger(ctx context.Context, kind constants.TriggerKind) (*domain.Run, error)
}

// Scheduler triggers timer runs at a fixed interval.
type Scheduler struct {
	orch     Triggerer
	interval time.Duration
	logger   zerolog.Logger

	// newTicker is swapped out in tests to drive ticks manually.
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// New creates a Scheduler.
func New(orch Triggerer, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		orch:     orch,
		interval: interval,
		logger:   logger,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run blocks, firing timer runs until the context is canceled.
// Returns nil on clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("scheduler started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticks, stop := s.newTicker(s.interval)
		defer stop()

		// First run fires on startup rather than one interval later
		s.fire(ctx)

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticks:
				s.fire(ctx)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		s.logger.Info().Msg("scheduler stopped")
		return nil
	}
	return err
}

// fire triggers one timer run and logs the outcome.
func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	r, err := s.orch.Trigger(ctx, constants.TriggerKindTimer)
	switch {
	case errors.Is(err, gleanererrors.ErrAlreadyRunning):
		s.logger.Warn().Msg("tick skipped, previous run still active")
	case err != nil && r != nil:
		s.logger.Warn().
			Str("run_id", r.ID).
			Str("failure_kind", r.FailureKind).
			Msg("timer run failed, next tick will retry")
	case err != nil:
		s.logger.Error().Err(err).Msg("timer run could not start")
	default:
		s.logger.Info().
			Str("run_id", r.ID).
			Int("records", r.PublishedCount).
			Msg("timer run succeeded")
	}
}
