// Package lease enforces the single-active-run invariant.
//
// A run must hold the lease for its entire lifetime. The local file lease
// covers a single host; the Redis lease extends the same guarantee across
// hosts sharing a destination.
package lease

import "context"

// Lease guards pipeline execution so at most one run is active at a time.
type Lease interface {
	// Acquire takes the lease for the run. Returns ErrLeaseHeld when another
	// run currently holds it.
	Acquire(ctx context.Context, runID string) error

	// Release gives the lease back. Returns ErrLeaseNotHeld when the caller
	// does not hold it (for the Redis lease, when it expired or another run
	// took over).
	Release(ctx context.Context) error
}
