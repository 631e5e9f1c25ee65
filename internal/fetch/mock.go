// Package fetch retrieves raw artifacts from configured external sources.
// This file implements the in-memory fixture client used for local dry runs
// and deterministic tests.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// MockClient serves payloads from an in-memory map keyed by source ID.
// Sources listed in Failing return ErrSourceUnavailable, letting tests
// script failure sequences per source.
type MockClient struct {
	Payloads map[string][]byte
	Failing  map[string]bool
	Now      func() time.Time

	calls map[string]int
}

// NewMockClient creates a MockClient with the given payloads.
func NewMockClient(payloads map[string][]byte) *MockClient {
	return &MockClient{
		Payloads: payloads,
		Failing:  make(map[string]bool),
		Now:      time.Now,
		calls:    make(map[string]int),
	}
}

// Fetch returns the fixture payload for the source, or an unavailable error
// when the source is scripted to fail.
func (c *MockClient) Fetch(_ context.Context, src config.Source) (*domain.RawArtifact, error) {
	c.calls[src.ID]++

	if c.Failing[src.ID] {
		return nil, fmt.Errorf("source %s: %w: scripted failure", src.ID, gleanererrors.ErrSourceUnavailable)
	}

	payload, ok := c.Payloads[src.ID]
	if !ok {
		return nil, fmt.Errorf("source %s: %w: no fixture payload", src.ID, gleanererrors.ErrSourceUnavailable)
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &domain.RawArtifact{
		SourceID:  src.ID,
		FetchedAt: now().UTC(),
		Payload:   payload,
	}, nil
}

// Calls returns how many times the source was fetched.
func (c *MockClient) Calls(sourceID string) int {
	return c.calls[sourceID]
}

// Compile-time interface check.
var _ SourceClient = (*MockClient)(nil)
