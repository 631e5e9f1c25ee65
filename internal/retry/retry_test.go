package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

// fastConfig keeps test backoff delays negligible.
func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestExecute_SuccessFirstAttempt tests that a success short-circuits.
func TestExecute_SuccessFirstAttempt(t *testing.T) {
	op := &SimpleOperation[string]{
		AttemptFunc: func(_ context.Context, _ int) (string, bool, error) {
			return "ok", true, nil
		},
	}

	result, attempts, err := Execute(context.Background(), fastConfig(), op, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, attempts)
}

// TestExecute_RetriesThenSucceeds tests recovery after transient failures.
func TestExecute_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	op := &SimpleOperation[int]{
		AttemptFunc: func(_ context.Context, _ int) (int, bool, error) {
			calls++
			if calls < 3 {
				return 0, false, errTransient
			}
			return 42, true, nil
		},
		ShouldRetryFunc: func(err error) bool { return errors.Is(err, errTransient) },
	}

	result, attempts, err := Execute(context.Background(), fastConfig(), op, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

// TestExecute_ExhaustsAttempts tests that the final error surfaces after the
// attempt budget is spent.
func TestExecute_ExhaustsAttempts(t *testing.T) {
	op := &SimpleOperation[int]{
		AttemptFunc: func(_ context.Context, _ int) (int, bool, error) {
			return 0, false, errTransient
		},
		ShouldRetryFunc: func(err error) bool { return errors.Is(err, errTransient) },
	}

	_, attempts, err := Execute(context.Background(), fastConfig(), op, zerolog.Nop())
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
}

// TestExecute_NonRetryableStopsImmediately tests that a permanent error is
// never retried.
func TestExecute_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	op := &SimpleOperation[int]{
		AttemptFunc: func(_ context.Context, _ int) (int, bool, error) {
			calls++
			return 0, false, permanent
		},
		ShouldRetryFunc: func(err error) bool { return errors.Is(err, errTransient) },
	}

	_, attempts, err := Execute(context.Background(), fastConfig(), op, zerolog.Nop())
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

// TestExecute_ContextCanceledDuringWait tests that cancellation interrupts
// the backoff wait.
func TestExecute_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastConfig()
	cfg.InitialDelay = time.Minute

	op := &SimpleOperation[int]{
		AttemptFunc: func(_ context.Context, _ int) (int, bool, error) {
			return 0, false, errTransient
		},
		ShouldRetryFunc: func(err error) bool { return errors.Is(err, errTransient) },
		OnRetryWaitFunc: func(_ int, _ time.Duration) { cancel() },
	}

	_, attempts, err := Execute(ctx, cfg, op, zerolog.Nop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

// TestExecute_BackoffGrowsAndCaps tests the exponential delay schedule.
func TestExecute_BackoffGrowsAndCaps(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}

	var delays []time.Duration
	op := &SimpleOperation[int]{
		AttemptFunc: func(_ context.Context, _ int) (int, bool, error) {
			return 0, false, errTransient
		},
		ShouldRetryFunc: func(err error) bool { return errors.Is(err, errTransient) },
		OnRetryWaitFunc: func(_ int, delay time.Duration) { delays = append(delays, delay) },
	}

	_, _, err := Execute(context.Background(), cfg, op, zerolog.Nop())
	require.ErrorIs(t, err, errTransient)

	require.Len(t, delays, 3)
	assert.Equal(t, time.Millisecond, delays[0])
	assert.Equal(t, 2*time.Millisecond, delays[1])
	// Capped at MaxDelay
	assert.Equal(t, 2*time.Millisecond, delays[2])
}

// TestDefaultConfig tests the default retry parameters.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.InDelta(t, 2.0, cfg.Multiplier, 0.001)
}
