// Package lease enforces the single-active-run invariant.
// This file implements the local file lease.
package lease

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/gleaner/internal/ctxutil"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
	"github.com/mrz1836/gleaner/internal/flock"
)

// FileLease holds an exclusive flock on a lock file for the lifetime of the
// run. The kernel releases the lock when the process dies, so a crashed run
// can never block the next one.
type FileLease struct {
	path string
	file *os.File
}

// NewFileLease creates a file lease at the given path.
func NewFileLease(path string) *FileLease {
	return &FileLease{path: path}
}

// Acquire takes the lease. The attempt is non-blocking: a held lock means
// another run is active right now, which is an answer, not a wait condition.
func (l *FileLease) Acquire(ctx context.Context, runID string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if l.file != nil {
		return fmt.Errorf("lease already acquired by this process: %w", gleanererrors.ErrLeaseHeld)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create lease directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600) //#nosec G304 -- path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to open lease file: %w", err)
	}

	if err := flock.Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("lease at %s is held: %w", l.path, gleanererrors.ErrLeaseHeld)
	}

	// Record the holder for operator diagnostics; the flock is the guard
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(runID+"\n"), 0)

	l.file = f
	return nil
}

// Release gives the lease back.
func (l *FileLease) Release(_ context.Context) error {
	if l.file == nil {
		return fmt.Errorf("file lease: %w", gleanererrors.ErrLeaseNotHeld)
	}

	err := flock.Unlock(l.file.Fd())
	_ = l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ Lease = (*FileLease)(nil)
