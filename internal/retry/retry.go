// Package retry implements shared retry logic with exponential backoff.
// Publish delivery is the primary consumer; the operation abstraction keeps
// retry policy separate from attempt semantics.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (default: 3).
	MaxAttempts int

	// InitialDelay is the initial delay between retries (default: 2s).
	InitialDelay time.Duration

	// MaxDelay is the maximum delay cap (default: 30s).
	MaxDelay time.Duration

	// Multiplier is the delay multiplier per attempt (default: 2.0).
	Multiplier float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Operation defines the interface for operations that can be retried.
// Implementations provide the attempt logic and retry decision making.
type Operation[R any] interface {
	// Attempt performs a single attempt and returns the result.
	// success indicates if the attempt succeeded.
	// err is any error that occurred (may be non-nil even on success for logging).
	Attempt(ctx context.Context, attempt int) (result R, success bool, err error)

	// ShouldRetry returns true if the operation should be retried given the error.
	ShouldRetry(err error) bool

	// OnRetryWait is called before waiting for the next retry (optional logging/progress).
	OnRetryWait(attempt int, delay time.Duration)
}

// Execute runs an operation with retry logic based on the provided config.
// Returns the result, total attempts made, and any final error.
func Execute[R any](
	ctx context.Context,
	config Config,
	op Operation[R],
	_ zerolog.Logger,
) (result R, attempts int, finalErr error) {
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		attempts = attempt

		res, success, err := op.Attempt(ctx, attempt)
		if success {
			return res, attempts, nil
		}

		// Store both the result and error from the failed attempt
		result = res
		finalErr = err

		// Check if we should stop retrying
		if !op.ShouldRetry(err) {
			break
		}

		// Wait before retrying (unless this is the last attempt)
		if attempt < config.MaxAttempts {
			op.OnRetryWait(attempt, delay)

			select {
			case <-ctx.Done():
				return result, attempts, ctx.Err()
			case <-time.After(delay):
			}

			// Increase delay for next attempt with exponential backoff
			delay = time.Duration(float64(delay) * config.Multiplier)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return result, attempts, finalErr
}

// SimpleOperation provides a simplified implementation for common cases.
// Use this when you have straightforward attempt and retry logic.
type SimpleOperation[R any] struct {
	AttemptFunc     func(ctx context.Context, attempt int) (R, bool, error)
	ShouldRetryFunc func(err error) bool
	OnRetryWaitFunc func(attempt int, delay time.Duration)
}

// Attempt implements Operation.
func (s *SimpleOperation[R]) Attempt(ctx context.Context, attempt int) (R, bool, error) {
	return s.AttemptFunc(ctx, attempt)
}

// ShouldRetry implements Operation.
func (s *SimpleOperation[R]) ShouldRetry(err error) bool {
	if s.ShouldRetryFunc == nil {
		return false
	}
	return s.ShouldRetryFunc(err)
}

// OnRetryWait implements Operation.
func (s *SimpleOperation[R]) OnRetryWait(attempt int, delay time.Duration) {
	if s.OnRetryWaitFunc != nil {
		s.OnRetryWaitFunc(attempt, delay)
	}
}

// Compile-time interface check.
var _ Operation[any] = (*SimpleOperation[any])(nil)
