package config

import (
	"github.com/mrz1836/gleaner/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files, environment variables, and CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			// Sources: empty by default; projects enumerate their targets in
			// .gleaner/config.yaml.
			Sources: nil,

			// RateLimitDelay: the inter-item pause is a hard design
			// constraint to avoid overloading remote sources.
			RateLimitDelay: constants.DefaultRateLimitDelay,

			// MaxConsecutiveFailures: 3 tolerates isolated flaky sources
			// while still aborting quickly when a site is down.
			MaxConsecutiveFailures: constants.DefaultMaxConsecutiveFetchFailures,

			// Timeout: 30s bounds a single fetch.
			Timeout: constants.DefaultFetchTimeout,

			// UserAgent: identify ourselves honestly.
			UserAgent: "gleaner/1.0",
		},
		Aggregate: AggregateConfig{
			// MaxSkipRatio: abort once half the artifacts are malformed;
			// that points at a source format change, not stray noise.
			MaxSkipRatio: constants.DefaultMaxSkipRatio,
		},
		Publish: PublishConfig{
			// DSN: empty by default; required for the publish phase.
			DSN: "",

			// Table: the single upsert table.
			Table: "datasets",

			// RetryAttempts: 3 total attempts for transient upload errors.
			RetryAttempts: constants.DefaultPublishRetryAttempts,

			RetryDelay:    constants.DefaultPublishRetryDelay,
			RetryMaxDelay: constants.DefaultPublishRetryMaxDelay,

			Archive: ArchiveConfig{
				Enabled:         false,
				AccessKeyEnvVar: "GLEANER_ARCHIVE_ACCESS_KEY",
				SecretKeyEnvVar: "GLEANER_ARCHIVE_SECRET_KEY",
				UseSSL:          true,
			},
		},
		Workspace: WorkspaceConfig{
			NamePrefix: constants.DefaultWorkspacePrefix,
			MainBranch: constants.DefaultMainBranch,
		},
		Schedule: ScheduleConfig{
			Interval: constants.DefaultScheduleInterval,
		},
		Lease: LeaseConfig{
			// RedisURL: empty means single-host file lease.
			RedisURL: "",
			TTL:      constants.DefaultLeaseTTL,
		},
	}
}
