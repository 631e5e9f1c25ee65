package config

import (
	"time"

	"github.com/mrz1836/gleaner/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - fetch source IDs must be unique and non-empty
//   - fetch rate limit delay must be non-negative
//   - fetch max consecutive failures must be at least 1
//   - aggregate max skip ratio must be in [0, 1)
//   - publish retry attempts must be between 1 and 10
//   - workspace name prefix and main branch must not be empty
//   - schedule interval must be at least 1 minute
//   - lease TTL must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateFetchConfig(&cfg.Fetch); err != nil {
		return err
	}

	if err := validateAggregateConfig(&cfg.Aggregate); err != nil {
		return err
	}

	if err := validatePublishConfig(&cfg.Publish); err != nil {
		return err
	}

	if err := validateWorkspaceConfig(&cfg.Workspace); err != nil {
		return err
	}

	if err := validateScheduleConfig(&cfg.Schedule); err != nil {
		return err
	}

	if cfg.Lease.TTL <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidLease,
			"lease.ttl must be positive, got %s", cfg.Lease.TTL)
	}

	return nil
}

// validateFetchConfig checks fetch-specific configuration values.
func validateFetchConfig(cfg *FetchConfig) error {
	if cfg.RateLimitDelay < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidFetch,
			"fetch.rate_limit_delay must be non-negative, got %s", cfg.RateLimitDelay)
	}

	if cfg.MaxConsecutiveFailures < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidFetch,
			"fetch.max_consecutive_failures must be at least 1, got %d", cfg.MaxConsecutiveFailures)
	}

	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidFetch,
			"fetch.timeout must be positive, got %s", cfg.Timeout)
	}

	seen := make(map[string]struct{}, len(cfg.Sources))
	for i, src := range cfg.Sources {
		if src.ID == "" {
			return errors.Wrapf(errors.ErrConfigInvalidFetch,
				"fetch.sources[%d].id must not be empty", i)
		}
		if _, dup := seen[src.ID]; dup {
			return errors.Wrapf(errors.ErrConfigInvalidFetch,
				"fetch.sources[%d].id %q is duplicated", i, src.ID)
		}
		seen[src.ID] = struct{}{}

		switch src.Kind {
		case "", SourceKindHTTP, SourceKindBrowser, SourceKindMock:
		default:
			return errors.Wrapf(errors.ErrConfigInvalidFetch,
				"fetch.sources[%d].kind %q must be one of http, browser, mock", i, src.Kind)
		}
	}

	return nil
}

// validateAggregateConfig checks aggregate-specific configuration values.
func validateAggregateConfig(cfg *AggregateConfig) error {
	if cfg.MaxSkipRatio < 0 || cfg.MaxSkipRatio >= 1 {
		return errors.Wrapf(errors.ErrConfigInvalidAggregate,
			"aggregate.max_skip_ratio must be in [0, 1), got %g", cfg.MaxSkipRatio)
	}

	return nil
}

// validatePublishConfig checks publish-specific configuration values.
func validatePublishConfig(cfg *PublishConfig) error {
	if cfg.RetryAttempts < 1 || cfg.RetryAttempts > 10 {
		return errors.Wrapf(errors.ErrConfigInvalidPublish,
			"publish.retry_attempts must be between 1 and 10, got %d", cfg.RetryAttempts)
	}

	if cfg.RetryDelay <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidPublish,
			"publish.retry_delay must be positive, got %s", cfg.RetryDelay)
	}

	if cfg.RetryMaxDelay < cfg.RetryDelay {
		return errors.Wrapf(errors.ErrConfigInvalidPublish,
			"publish.retry_max_delay must be at least retry_delay, got %s < %s",
			cfg.RetryMaxDelay, cfg.RetryDelay)
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.Endpoint == "" {
			return errors.Wrap(errors.ErrConfigInvalidPublish,
				"publish.archive.endpoint must not be empty when archival is enabled")
		}
		if cfg.Archive.Bucket == "" {
			return errors.Wrap(errors.ErrConfigInvalidPublish,
				"publish.archive.bucket must not be empty when archival is enabled")
		}
	}

	return nil
}

// validateWorkspaceConfig checks workspace-specific configuration values.
func validateWorkspaceConfig(cfg *WorkspaceConfig) error {
	if cfg.NamePrefix == "" {
		return errors.Wrap(errors.ErrConfigInvalidWorkspace,
			"workspace.name_prefix must not be empty")
	}

	if cfg.MainBranch == "" {
		return errors.Wrap(errors.ErrConfigInvalidWorkspace,
			"workspace.main_branch must not be empty")
	}

	return nil
}

// validateScheduleConfig checks schedule-specific configuration values.
func validateScheduleConfig(cfg *ScheduleConfig) error {
	minInterval := 1 * time.Minute
	if cfg.Interval < minInterval {
		return errors.Wrapf(errors.ErrConfigInvalidSchedule,
			"schedule.interval must be at least %s, got %s", minInterval, cfg.Interval)
	}

	return nil
}
