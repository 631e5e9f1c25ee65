// Package lease enforces the single-active-run invariant.
// This file implements the distributed Redis lease.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/mrz1836/gleaner/internal/ctxutil"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// leaseKey is the Redis key guarding pipeline execution.
const leaseKey = "gleaner:run:lease"

// releaseScript deletes the lease only when the caller still holds it, so a
// run that outlived its TTL cannot release a lease another run took over.
var releaseScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease holds the run lease as a Redis key with NX/PX semantics.
// The TTL bounds how long a crashed holder can block the pipeline.
type RedisLease struct {
	pool  *redis.Pool
	ttl   time.Duration
	runID string
}

// NewRedisLease creates a Redis lease from a redis:// URL.
func NewRedisLease(url string, ttl time.Duration) *RedisLease {
	pool := &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, url)
		},
	}
	return &RedisLease{pool: pool, ttl: ttl}
}

// NewRedisLeaseWithPool creates a Redis lease over an existing pool.
// Used by tests.
func NewRedisLeaseWithPool(pool *redis.Pool, ttl time.Duration) *RedisLease {
	return &RedisLease{pool: pool, ttl: ttl}
}

// Acquire takes the lease with SET NX PX.
func (l *RedisLease) Acquire(ctx context.Context, runID string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to lease backend: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_, err = redis.String(conn.Do("SET", leaseKey, runID, "NX", "PX", l.ttl.Milliseconds()))
	if errors.Is(err, redis.ErrNil) {
		holder, _ := redis.String(conn.Do("GET", leaseKey))
		return fmt.Errorf("lease held by %s: %w", holder, gleanererrors.ErrLeaseHeld)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	l.runID = runID
	return nil
}

// Release gives the lease back via the compare-and-delete script.
func (l *RedisLease) Release(ctx context.Context) error {
	if l.runID == "" {
		return fmt.Errorf("redis lease: %w", gleanererrors.ErrLeaseNotHeld)
	}

	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to lease backend: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deleted, err := redis.Int(releaseScript.Do(conn, leaseKey, l.runID))
	l.runID = ""
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("lease expired or taken over: %w", gleanererrors.ErrLeaseNotHeld)
	}
	return nil
}

// Close shuts down the connection pool.
func (l *RedisLease) Close() error {
	return l.pool.Close()
}

// Compile-time interface check.
var _ Lease = (*RedisLease)(nil)
