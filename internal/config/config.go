// Package config provides configuration management for GLEANER with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (GLEANER_* prefix)
//  3. Project config (.gleaner/config.yaml)
//  4. Global config (~/.gleaner/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for GLEANER.
// It contains all configuration sections for the pipeline.
type Config struct {
	// Fetch contains settings for the source fetch phase.
	Fetch FetchConfig `yaml:"fetch" json:"fetch" mapstructure:"fetch"`

	// Aggregate contains settings for the aggregation phase.
	Aggregate AggregateConfig `yaml:"aggregate" json:"aggregate" mapstructure:"aggregate"`

	// Publish contains settings for the publish phase.
	Publish PublishConfig `yaml:"publish" json:"publish" mapstructure:"publish"`

	// Workspace contains settings for workspace isolation.
	Workspace WorkspaceConfig `yaml:"workspace" json:"workspace" mapstructure:"workspace"`

	// Schedule contains settings for the timer trigger.
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" mapstructure:"schedule"`

	// Lease contains settings for single-active-run enforcement.
	Lease LeaseConfig `yaml:"lease" json:"lease" mapstructure:"lease"`
}

// SourceKind selects the client used to fetch a source.
type SourceKind string

// Source kinds.
const (
	// SourceKindHTTP fetches a JSON endpoint over plain HTTP.
	SourceKindHTTP SourceKind = "http"
	// SourceKindBrowser renders the page in a headless browser first.
	SourceKindBrowser SourceKind = "browser"
	// SourceKindMock serves fixture payloads for offline runs and tests.
	SourceKindMock SourceKind = "mock"
)

// ValidSourceKinds returns all accepted source kinds.
func ValidSourceKinds() []SourceKind {
	return []SourceKind{SourceKindHTTP, SourceKindBrowser, SourceKindMock}
}

// Source describes one scrape target.
type Source struct {
	// ID is the stable identifier for the source. Artifacts and records are
	// keyed and sorted by source ID, so it must be unique within the list.
	ID string `yaml:"id" json:"id" mapstructure:"id"`

	// URL is the location to fetch.
	URL string `yaml:"url" json:"url" mapstructure:"url"`

	// Kind selects the source client: "http" (JSON endpoint), "browser"
	// (headless-rendered page), or "mock" (offline synthetic data).
	// Default: "http"
	Kind SourceKind `yaml:"kind" json:"kind" mapstructure:"kind"`
}

// FetchConfig contains settings for the fetch phase.
type FetchConfig struct {
	// Sources is the enumerated list of scrape targets, processed
	// sequentially in list order.
	Sources []Source `yaml:"sources" json:"sources" mapstructure:"sources"`

	// RateLimitDelay is the pause between consecutive source fetches.
	// This is a hard constraint to stay gentle on remote servers, not an
	// optimization knob.
	// Default: 2s
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" json:"rate_limit_delay" mapstructure:"rate_limit_delay"`

	// MaxConsecutiveFailures aborts the fetch phase once this many sources
	// fail back to back. Non-consecutive failures are recorded and skipped.
	// Default: 3
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" json:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`

	// Timeout bounds a single source fetch.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with HTTP fetches.
	UserAgent string `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
}

// AggregateConfig contains settings for the aggregation phase.
type AggregateConfig struct {
	// MaxSkipRatio is the highest tolerated fraction of malformed artifacts
	// (skipped / total) before aggregation aborts.
	// Default: 0.5, Valid range: [0, 1)
	MaxSkipRatio float64 `yaml:"max_skip_ratio" json:"max_skip_ratio" mapstructure:"max_skip_ratio"`
}

// PublishConfig contains settings for the publish phase.
type PublishConfig struct {
	// DSN is the destination Postgres connection string. The password
	// portion comes from PUBLISH_SECRET at publish time; the DSN itself
	// should not embed credentials.
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`

	// Table is the destination table for upserts.
	// Default: "datasets"
	Table string `yaml:"table" json:"table" mapstructure:"table"`

	// RetryAttempts is the total number of publish attempts for transient
	// errors (1 initial + N-1 retries).
	// Default: 3
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`

	// RetryDelay is the initial backoff before the first retry.
	// Default: 2s
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`

	// RetryMaxDelay caps the exponential backoff.
	// Default: 30s
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" json:"retry_max_delay" mapstructure:"retry_max_delay"`

	// Archive configures optional snapshot archival to object storage.
	Archive ArchiveConfig `yaml:"archive" json:"archive" mapstructure:"archive"`
}

// ArchiveConfig configures snapshot archival to S3-compatible object storage.
// Archival runs after a successful publish and failures are logged, not fatal.
type ArchiveConfig struct {
	// Enabled turns snapshot archival on.
	// Default: false
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// Endpoint is the S3-compatible endpoint host:port.
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`

	// Bucket is the destination bucket for dataset snapshots.
	Bucket string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`

	// AccessKeyEnvVar names the env var holding the access key.
	// Default: "GLEANER_ARCHIVE_ACCESS_KEY"
	AccessKeyEnvVar string `yaml:"access_key_env_var" json:"access_key_env_var" mapstructure:"access_key_env_var"`

	// SecretKeyEnvVar names the env var holding the secret key.
	// Default: "GLEANER_ARCHIVE_SECRET_KEY"
	SecretKeyEnvVar string `yaml:"secret_key_env_var" json:"secret_key_env_var" mapstructure:"secret_key_env_var"`

	// UseSSL enables TLS to the endpoint.
	// Default: true
	UseSSL bool `yaml:"use_ssl" json:"use_ssl" mapstructure:"use_ssl"`
}

// WorkspaceConfig contains settings for workspace isolation.
type WorkspaceConfig struct {
	// NamePrefix prefixes workspace names and branch names.
	// Default: "run"
	NamePrefix string `yaml:"name_prefix" json:"name_prefix" mapstructure:"name_prefix"`

	// MainBranch is the main line branch of the dataset repository.
	// Default: "main"
	MainBranch string `yaml:"main_branch" json:"main_branch" mapstructure:"main_branch"`
}

// ScheduleConfig contains settings for the timer trigger loop.
type ScheduleConfig struct {
	// Interval is how often `gleaner serve` triggers a timer run.
	// Default: 1h
	Interval time.Duration `yaml:"interval" json:"interval" mapstructure:"interval"`
}

// LeaseConfig contains settings for single-active-run enforcement.
type LeaseConfig struct {
	// RedisURL enables the distributed Redis lease when set (redis://...).
	// Empty means the local file lease is used.
	RedisURL string `yaml:"redis_url" json:"redis_url" mapstructure:"redis_url"`

	// TTL is how long a lease remains valid without renewal, so a crashed
	// holder cannot block the pipeline forever.
	// Default: 2h
	TTL time.Duration `yaml:"ttl" json:"ttl" mapstructure:"ttl"`
}
