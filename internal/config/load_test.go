package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gleaner/internal/constants"
)

// TestLoad_Defaults tests loading with no config files present.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv(constants.HomeEnvVar, t.TempDir())

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Fetch.RateLimitDelay, cfg.Fetch.RateLimitDelay)
	assert.Equal(t, defaults.Publish.Table, cfg.Publish.Table)
	assert.Equal(t, defaults.Schedule.Interval, cfg.Schedule.Interval)
	assert.Equal(t, defaults.Workspace.MainBranch, cfg.Workspace.MainBranch)
}

// TestLoad_EnvOverride tests that GLEANER_* environment variables take
// precedence over defaults.
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(constants.HomeEnvVar, t.TempDir())
	t.Setenv("GLEANER_PUBLISH_TABLE", "scrapes")
	t.Setenv("GLEANER_SCHEDULE_INTERVAL", "2h")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "scrapes", cfg.Publish.Table)
	assert.Equal(t, 2*time.Hour, cfg.Schedule.Interval)
}

// TestLoadFromPaths_GlobalConfig tests loading a global config file.
func TestLoadFromPaths_GlobalConfig(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(globalPath, []byte(`
fetch:
  user_agent: "gleaner-test/0.1"
publish:
  table: "global_table"
`), 0o600))

	cfg, err := LoadFromPaths(context.Background(), "", globalPath)
	require.NoError(t, err)

	assert.Equal(t, "gleaner-test/0.1", cfg.Fetch.UserAgent)
	assert.Equal(t, "global_table", cfg.Publish.Table)
}

// TestLoadFromPaths_ProjectOverridesGlobal tests that project config wins
// over global config.
func TestLoadFromPaths_ProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()

	globalPath := filepath.Join(dir, "global.yaml")
	require.NoError(t, os.WriteFile(globalPath, []byte(`
publish:
  table: "global_table"
workspace:
  main_branch: "global-main"
`), 0o600))

	projectPath := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(projectPath, []byte(`
publish:
  table: "project_table"
fetch:
  sources:
    - id: "shop-a"
      url: "https://shop-a.example.com/products"
    - id: "shop-b"
      url: "https://shop-b.example.com/products"
      kind: "browser"
`), 0o600))

	cfg, err := LoadFromPaths(context.Background(), projectPath, globalPath)
	require.NoError(t, err)

	// Project value wins, global value survives where the project is silent
	assert.Equal(t, "project_table", cfg.Publish.Table)
	assert.Equal(t, "global-main", cfg.Workspace.MainBranch)

	require.Len(t, cfg.Fetch.Sources, 2)
	assert.Equal(t, "shop-a", cfg.Fetch.Sources[0].ID)
	assert.Equal(t, SourceKindBrowser, cfg.Fetch.Sources[1].Kind)
}

// TestLoadFromPaths_InvalidConfig tests that an invalid file fails validation.
func TestLoadFromPaths_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schedule:
  interval: "5s"
`), 0o600))

	_, err := LoadFromPaths(context.Background(), path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule.interval")
}

// TestLoadFromPaths_MissingFiles tests that missing files fall back to defaults.
func TestLoadFromPaths_MissingFiles(t *testing.T) {
	cfg, err := LoadFromPaths(context.Background(),
		filepath.Join(t.TempDir(), "nope.yaml"),
		filepath.Join(t.TempDir(), "also-nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Publish.Table, cfg.Publish.Table)
}

// TestLoadWithOverrides tests that non-zero override values are applied and
// re-validated.
func TestLoadWithOverrides(t *testing.T) {
	t.Setenv(constants.HomeEnvVar, t.TempDir())

	overrides := &Config{}
	overrides.Fetch.UserAgent = "override-agent"
	overrides.Schedule.Interval = 10 * time.Minute

	cfg, err := LoadWithOverrides(context.Background(), overrides)
	require.NoError(t, err)

	assert.Equal(t, "override-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.Interval)
	// Untouched values keep their defaults
	assert.Equal(t, DefaultConfig().Publish.Table, cfg.Publish.Table)
}

// TestHomeDir tests GLEANER_HOME resolution.
func TestHomeDir(t *testing.T) {
	custom := t.TempDir()
	t.Setenv(constants.HomeEnvVar, custom)

	home, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, custom, home)
}

// TestHomeDir_Default tests the ~/.gleaner fallback.
func TestHomeDir_Default(t *testing.T) {
	t.Setenv(constants.HomeEnvVar, "")

	home, err := HomeDir()
	require.NoError(t, err)

	userHome, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(userHome, constants.GleanerHome), home)
}
