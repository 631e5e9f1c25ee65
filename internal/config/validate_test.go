package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// TestValidate_Defaults tests that the built-in defaults pass validation.
func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

// TestValidate_NilConfig tests that a nil config is rejected.
func TestValidate_NilConfig(t *testing.T) {
	require.ErrorIs(t, Validate(nil), gleanererrors.ErrConfigNil)
}

// TestValidate_Fetch tests fetch configuration validation rules.
func TestValidate_Fetch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "negative rate limit delay",
			mutate: func(c *Config) { c.Fetch.RateLimitDelay = -time.Second },
		},
		{
			name:   "zero max consecutive failures",
			mutate: func(c *Config) { c.Fetch.MaxConsecutiveFailures = 0 },
		},
		{
			name:   "zero timeout",
			mutate: func(c *Config) { c.Fetch.Timeout = 0 },
		},
		{
			name: "empty source id",
			mutate: func(c *Config) {
				c.Fetch.Sources = []Source{{ID: "", URL: "https://example.com"}}
			},
		},
		{
			name: "duplicate source id",
			mutate: func(c *Config) {
				c.Fetch.Sources = []Source{
					{ID: "a", URL: "https://example.com/1"},
					{ID: "a", URL: "https://example.com/2"},
				}
			},
		},
		{
			name: "unknown source kind",
			mutate: func(c *Config) {
				c.Fetch.Sources = []Source{{ID: "a", URL: "https://example.com", Kind: "carrier-pigeon"}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidFetch)
		})
	}
}

// TestValidate_Fetch_ValidKinds tests that all supported source kinds pass.
func TestValidate_Fetch_ValidKinds(t *testing.T) {
	for _, kind := range []SourceKind{"", SourceKindHTTP, SourceKindBrowser, SourceKindMock} {
		cfg := DefaultConfig()
		cfg.Fetch.Sources = []Source{{ID: "a", URL: "https://example.com", Kind: kind}}
		require.NoError(t, Validate(cfg), "kind %q should be accepted", kind)
	}
}

// TestValidate_Aggregate tests the skip ratio bounds.
func TestValidate_Aggregate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Aggregate.MaxSkipRatio = 1.0
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidAggregate)

	cfg = DefaultConfig()
	cfg.Aggregate.MaxSkipRatio = -0.1
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidAggregate)

	cfg = DefaultConfig()
	cfg.Aggregate.MaxSkipRatio = 0
	require.NoError(t, Validate(cfg))
}

// TestValidate_Publish tests publish configuration validation rules.
func TestValidate_Publish(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Publish.RetryAttempts = 0
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidPublish)

	cfg = DefaultConfig()
	cfg.Publish.RetryAttempts = 11
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidPublish)

	cfg = DefaultConfig()
	cfg.Publish.RetryMaxDelay = cfg.Publish.RetryDelay / 2
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidPublish)

	// Archival requires an endpoint and bucket once enabled
	cfg = DefaultConfig()
	cfg.Publish.Archive.Enabled = true
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidPublish)

	cfg.Publish.Archive.Endpoint = "minio.local:9000"
	cfg.Publish.Archive.Bucket = "snapshots"
	require.NoError(t, Validate(cfg))
}

// TestValidate_Workspace tests workspace configuration validation rules.
func TestValidate_Workspace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace.NamePrefix = ""
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidWorkspace)

	cfg = DefaultConfig()
	cfg.Workspace.MainBranch = ""
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidWorkspace)
}

// TestValidate_Schedule tests the minimum schedule interval.
func TestValidate_Schedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule.Interval = 30 * time.Second
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidSchedule)

	cfg.Schedule.Interval = time.Minute
	require.NoError(t, Validate(cfg))
}

// TestValidate_Lease tests the lease TTL bound.
func TestValidate_Lease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lease.TTL = 0
	require.ErrorIs(t, Validate(cfg), gleanererrors.ErrConfigInvalidLease)
}
