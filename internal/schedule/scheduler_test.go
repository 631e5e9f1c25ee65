package schedule

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// countingTriggerer records triggers and returns scripted outcomes.
type countingTriggerer struct {
	mu    sync.Mutex
	kinds []constants.TriggerKind
	errs  []error
	fired chan struct{}
}

func newCountingTriggerer(buffered int) *countingTriggerer {
	return &countingTriggerer{fired: make(chan struct{}, buffered)}
}

func (c *countingTriggerer) Trigger(_ context.Context, kind constants.TriggerKind) (*domain.Run, error) {
	c.mu.Lock()
	c.kinds = append(c.kinds, kind)
	n := len(c.kinds)
	c.mu.Unlock()

	c.fired <- struct{}{}

	if n <= len(c.errs) && c.errs[n-1] != nil {
		return &domain.Run{ID: fmt.Sprintf("run-%d", n), Status: constants.RunStatusFailed}, c.errs[n-1]
	}
	return &domain.Run{ID: fmt.Sprintf("run-%d", n), Status: constants.RunStatusSucceeded}, nil
}

func (c *countingTriggerer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.kinds)
}

// runScheduler drives the scheduler with a manual tick channel.
func runScheduler(t *testing.T, trig Triggerer) (ticks chan time.Time, cancel context.CancelFunc, done chan error) {
	t.Helper()

	s := New(trig, time.Hour, zerolog.Nop())
	ticks = make(chan time.Time)
	s.newTicker = func(_ time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return ticks, cancel, done
}

func waitFired(t *testing.T, c *countingTriggerer) {
	t.Helper()
	select {
	case <-c.fired:
	case <-time.After(time.Second):
		t.Fatal("trigger did not fire")
	}
}

func TestSchedulerFiresOnStartupAndTicks(t *testing.T) {
	t.Parallel()

	trig := newCountingTriggerer(8)
	ticks, cancel, done := runScheduler(t, trig)

	// Startup run
	waitFired(t, trig)

	ticks <- time.Now()
	waitFired(t, trig)
	ticks <- time.Now()
	waitFired(t, trig)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, trig.count())
	for _, kind := range trig.kinds {
		assert.Equal(t, constants.TriggerKindTimer, kind)
	}
}

func TestSchedulerSurvivesFailedRuns(t *testing.T) {
	t.Parallel()

	trig := newCountingTriggerer(8)
	trig.errs = []error{
		fmt.Errorf("x: %w", gleanererrors.ErrFetchAborted),
		fmt.Errorf("x: %w", gleanererrors.ErrAlreadyRunning),
	}
	ticks, cancel, done := runScheduler(t, trig)

	waitFired(t, trig) // startup run fails
	ticks <- time.Now()
	waitFired(t, trig) // second run skipped by lease
	ticks <- time.Now()
	waitFired(t, trig) // third run succeeds

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 3, trig.count())
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	t.Parallel()

	trig := newCountingTriggerer(8)
	_, cancel, done := runScheduler(t, trig)

	waitFired(t, trig)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
