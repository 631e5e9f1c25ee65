// Package constants provides shared constants for GLEANER.
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package constants

import "time"

// Application identity constants.
const (
	// AppName is the canonical application name used in logs and user output.
	AppName = "gleaner"

	// EnvPrefix is the prefix for environment variable configuration overrides.
	EnvPrefix = "GLEANER"

	// PublishSecretEnvVar is the environment variable holding the publisher
	// credential. It is read only inside the publisher's secret resolver and
	// must never be logged or persisted.
	PublishSecretEnvVar = "PUBLISH_SECRET"
)

// Default pipeline tuning values. These mirror the config defaults and are
// used when a config section is absent.
const (
	// DefaultRateLimitDelay is the pause between consecutive source fetches.
	DefaultRateLimitDelay = 2 * time.Second

	// DefaultMaxConsecutiveFetchFailures aborts the fetch phase once this many
	// sources fail back to back. The counter resets on every success.
	DefaultMaxConsecutiveFetchFailures = 3

	// DefaultMaxSkipRatio is the highest tolerated fraction of malformed
	// artifacts before aggregation aborts.
	DefaultMaxSkipRatio = 0.5

	// DefaultPublishRetryAttempts bounds publish attempts for transient errors.
	DefaultPublishRetryAttempts = 3

	// DefaultPublishRetryDelay is the initial backoff before the first retry.
	DefaultPublishRetryDelay = 2 * time.Second

	// DefaultPublishRetryMaxDelay caps the exponential backoff.
	DefaultPublishRetryMaxDelay = 30 * time.Second

	// DefaultScheduleInterval is the timer trigger period for `gleaner serve`.
	DefaultScheduleInterval = time.Hour

	// DefaultWorkspacePrefix prefixes workspace names and branches.
	DefaultWorkspacePrefix = "run"

	// DefaultMainBranch is the main line branch of the dataset repository.
	DefaultMainBranch = "main"

	// DefaultFetchTimeout bounds a single source fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultLeaseTTL is how long a run lease remains valid without renewal.
	DefaultLeaseTTL = 2 * time.Hour
)

// Logging constants for the rotating CLI log file.
const (
	// LogMaxSizeMB is the maximum size in megabytes before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated files in days.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)
