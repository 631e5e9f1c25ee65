// Package publish delivers aggregated datasets to the external destination.
// This file handles publish credential resolution.
package publish

import (
	"fmt"
	"os"

	"github.com/mrz1836/gleaner/internal/constants"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// SecretResolver returns the publish credential.
//
// The credential is resolved at publish time only, never earlier, and the
// value must never be logged or persisted. Everything outside this package
// handles the resolver, not the secret itself.
type SecretResolver func() (string, error)

// EnvSecretResolver reads the publish credential from PUBLISH_SECRET.
func EnvSecretResolver() (string, error) {
	secret := os.Getenv(constants.PublishSecretEnvVar)
	if secret == "" {
		return "", fmt.Errorf("%s is not set: %w",
			constants.PublishSecretEnvVar, gleanererrors.ErrSecretMissing)
	}
	return secret, nil
}

// StaticSecretResolver returns a fixed credential. Used by tests.
func StaticSecretResolver(secret string) SecretResolver {
	return func() (string, error) { return secret, nil }
}
