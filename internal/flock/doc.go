// Package flock provides cross-platform file locking utilities.
//
// GLEANER uses exclusive, non-blocking file locks in two places: the
// workspace and run stores guard their state files against concurrent
// writers, and the lease package uses a lock file to enforce the
// single-active-run invariant on one host.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - file is in use
//	}
//	defer flock.Unlock(file.Fd())
package flock
