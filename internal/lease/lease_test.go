package lease

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

func TestFileLeaseAcquireRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.lock")
	ctx := context.Background()

	l := NewFileLease(path)
	require.NoError(t, l.Acquire(ctx, "run-1"))

	// A second acquire through the same process-held lease fails
	require.ErrorIs(t, l.Acquire(ctx, "run-2"), gleanererrors.ErrLeaseHeld)

	require.NoError(t, l.Release(ctx))
	require.ErrorIs(t, l.Release(ctx), gleanererrors.ErrLeaseNotHeld)

	// After release the lease is free again
	require.NoError(t, l.Acquire(ctx, "run-3"))
	require.NoError(t, l.Release(ctx))
}

func newMiniredisLease(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisLease) {
	t.Helper()

	mr := miniredis.RunT(t)
	pool := &redis.Pool{
		MaxIdle: 2,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", mr.Addr())
		},
	}
	return mr, NewRedisLeaseWithPool(pool, ttl)
}

func TestRedisLeaseAcquireRelease(t *testing.T) {
	t.Parallel()

	mr, l := newMiniredisLease(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "run-1"))
	got, err := mr.Get(leaseKey)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got)

	require.NoError(t, l.Release(ctx))
	assert.False(t, mr.Exists(leaseKey))
}

func TestRedisLeaseBlocksSecondHolder(t *testing.T) {
	t.Parallel()

	mr, first := newMiniredisLease(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, first.Acquire(ctx, "run-1"))

	pool := &redis.Pool{
		MaxIdle: 2,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", mr.Addr())
		},
	}
	second := NewRedisLeaseWithPool(pool, time.Hour)

	err := second.Acquire(ctx, "run-2")
	require.ErrorIs(t, err, gleanererrors.ErrLeaseHeld)
	assert.Contains(t, err.Error(), "run-1")

	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.Acquire(ctx, "run-2"))
	require.NoError(t, second.Release(ctx))
}

func TestRedisLeaseReleaseAfterExpiry(t *testing.T) {
	t.Parallel()

	mr, l := newMiniredisLease(t, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "run-1"))

	// Simulate TTL expiry: the key is gone, release must report the loss
	mr.FastForward(time.Second)
	require.ErrorIs(t, l.Release(ctx), gleanererrors.ErrLeaseNotHeld)
}

func TestRedisLeaseReleaseDoesNotStealTakenLease(t *testing.T) {
	t.Parallel()

	mr, l := newMiniredisLease(t, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "run-1"))
	mr.FastForward(time.Second)

	// Another run takes the expired lease
	require.NoError(t, mr.Set(leaseKey, "run-2"))

	require.ErrorIs(t, l.Release(ctx), gleanererrors.ErrLeaseNotHeld)
	got, err := mr.Get(leaseKey)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got, "release must not delete another run's lease")
}
