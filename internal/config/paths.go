package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/errors"
)

// HomeDir returns the GLEANER home directory.
// If the GLEANER_HOME environment variable is set, it uses that.
// Otherwise, it defaults to ~/.gleaner.
func HomeDir() (string, error) {
	if home := os.Getenv(constants.HomeEnvVar); home != "" {
		return home, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.GleanerHome), nil
}

// GlobalConfigDir returns the path to the global GLEANER configuration directory.
// This is the GLEANER home directory (typically ~/.gleaner).
func GlobalConfigDir() (string, error) {
	return HomeDir()
}

// ProjectConfigDir returns the relative path to the project configuration directory.
// This is always .gleaner relative to the project root.
func ProjectConfigDir() string {
	return constants.ProjectConfigDir
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.gleaner/config.yaml on Unix systems.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .gleaner/config.yaml relative to the project root.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}
