package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/errors"
)

// newViperInstance creates a new Viper instance with standard GLEANER configuration.
// This includes environment variable prefix (GLEANER_), key replacer, and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (GLEANER_* prefix)
//  2. Project config (.gleaner/config.yaml)
//  3. Global config (~/.gleaner/config.yaml)
//  4. Built-in defaults
//
// For CLI flag overrides, use LoadWithOverrides instead.
//
// The function returns an error only for actual configuration problems,
// not for missing config files (which are expected in many scenarios).
//
// The context parameter is accepted for API consistency and future use,
// but is not currently used for cancellation since config file reads are
// typically fast local I/O operations.
func Load(_ context.Context) (*Config, error) {
	v := newViperInstance()

	// Global config provides host-wide defaults that can be overridden per-project
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}

	// Project config allows per-pipeline customization (source lists, DSN)
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	return unmarshalAndValidate(v)
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// The overrides parameter contains values from CLI flags which have the
// highest precedence in the configuration hierarchy.
//
// Only non-zero values in overrides are applied. Zero values are ignored
// to allow partial overrides.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	// Re-validate after applying overrides
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}

	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for testing.
// This function allows precise control over which config files are loaded.
//
// projectConfigPath is the path to project-level config (higher priority).
// globalConfigPath is the path to global config (lower priority).
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// loadGlobalConfig attempts to load the global config file (~/.gleaner/config.yaml).
// Returns nil if the file doesn't exist or home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		// Global config doesn't exist or home dir unavailable, skip silently
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
// Returns empty string and false if the home directory cannot be determined
// or the config file does not exist.
func getGlobalConfigPathIfExists() (string, bool) {
	globalDir, err := GlobalConfigDir()
	if err != nil {
		return "", false
	}

	globalConfigPath := filepath.Join(globalDir, constants.GlobalConfigName)
	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}

	return globalConfigPath, true
}

// loadProjectConfig attempts to load the project config file (.gleaner/config.yaml).
// Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		// Project config doesn't exist, skip silently
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// applyOverrides copies non-zero override values onto cfg.
// Booleans cannot be distinguished from unset and are handled by explicit
// flag wiring in the CLI instead.
func applyOverrides(cfg, overrides *Config) {
	if len(overrides.Fetch.Sources) > 0 {
		cfg.Fetch.Sources = overrides.Fetch.Sources
	}
	if overrides.Fetch.RateLimitDelay != 0 {
		cfg.Fetch.RateLimitDelay = overrides.Fetch.RateLimitDelay
	}
	if overrides.Fetch.MaxConsecutiveFailures != 0 {
		cfg.Fetch.MaxConsecutiveFailures = overrides.Fetch.MaxConsecutiveFailures
	}
	if overrides.Fetch.Timeout != 0 {
		cfg.Fetch.Timeout = overrides.Fetch.Timeout
	}
	if overrides.Fetch.UserAgent != "" {
		cfg.Fetch.UserAgent = overrides.Fetch.UserAgent
	}

	if overrides.Aggregate.MaxSkipRatio != 0 {
		cfg.Aggregate.MaxSkipRatio = overrides.Aggregate.MaxSkipRatio
	}

	applyPublishOverrides(cfg, overrides)

	if overrides.Workspace.NamePrefix != "" {
		cfg.Workspace.NamePrefix = overrides.Workspace.NamePrefix
	}
	if overrides.Workspace.MainBranch != "" {
		cfg.Workspace.MainBranch = overrides.Workspace.MainBranch
	}

	if overrides.Schedule.Interval != 0 {
		cfg.Schedule.Interval = overrides.Schedule.Interval
	}

	if overrides.Lease.RedisURL != "" {
		cfg.Lease.RedisURL = overrides.Lease.RedisURL
	}
	if overrides.Lease.TTL != 0 {
		cfg.Lease.TTL = overrides.Lease.TTL
	}
}

// applyPublishOverrides applies publish-related overrides to the config.
// This is extracted from applyOverrides to reduce cognitive complexity.
func applyPublishOverrides(cfg, overrides *Config) {
	if overrides.Publish.DSN != "" {
		cfg.Publish.DSN = overrides.Publish.DSN
	}
	if overrides.Publish.Table != "" {
		cfg.Publish.Table = overrides.Publish.Table
	}
	if overrides.Publish.RetryAttempts != 0 {
		cfg.Publish.RetryAttempts = overrides.Publish.RetryAttempts
	}
	if overrides.Publish.RetryDelay != 0 {
		cfg.Publish.RetryDelay = overrides.Publish.RetryDelay
	}
	if overrides.Publish.RetryMaxDelay != 0 {
		cfg.Publish.RetryMaxDelay = overrides.Publish.RetryMaxDelay
	}
	if overrides.Publish.Archive.Endpoint != "" {
		cfg.Publish.Archive.Endpoint = overrides.Publish.Archive.Endpoint
	}
	if overrides.Publish.Archive.Bucket != "" {
		cfg.Publish.Archive.Bucket = overrides.Publish.Archive.Bucket
	}
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	// Fetch defaults
	v.SetDefault("fetch.sources", []map[string]string{})
	v.SetDefault("fetch.rate_limit_delay", "2s")
	v.SetDefault("fetch.max_consecutive_failures", constants.DefaultMaxConsecutiveFetchFailures)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.user_agent", "gleaner/1.0")

	// Aggregate defaults
	v.SetDefault("aggregate.max_skip_ratio", constants.DefaultMaxSkipRatio)

	// Publish defaults
	v.SetDefault("publish.dsn", "")
	v.SetDefault("publish.table", "datasets")
	v.SetDefault("publish.retry_attempts", constants.DefaultPublishRetryAttempts)
	v.SetDefault("publish.retry_delay", "2s")
	v.SetDefault("publish.retry_max_delay", "30s")
	v.SetDefault("publish.archive.enabled", false)
	v.SetDefault("publish.archive.endpoint", "")
	v.SetDefault("publish.archive.bucket", "")
	v.SetDefault("publish.archive.access_key_env_var", "GLEANER_ARCHIVE_ACCESS_KEY")
	v.SetDefault("publish.archive.secret_key_env_var", "GLEANER_ARCHIVE_SECRET_KEY")
	v.SetDefault("publish.archive.use_ssl", true)

	// Workspace defaults
	v.SetDefault("workspace.name_prefix", constants.DefaultWorkspacePrefix)
	v.SetDefault("workspace.main_branch", constants.DefaultMainBranch)

	// Schedule defaults
	v.SetDefault("schedule.interval", "1h")

	// Lease defaults
	v.SetDefault("lease.redis_url", "")
	v.SetDefault("lease.ttl", "2h")
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// This configures mapstructure to handle time.Duration conversion from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
