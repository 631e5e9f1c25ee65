// Package fetch retrieves raw artifacts from configured external sources.
// This file defines the SourceClient abstraction and the HTTP JSON client.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// SourceClient retrieves the raw artifact for a single source.
// Implementations exist for plain HTTP endpoints, browser-rendered pages,
// and in-memory fixtures for tests.
type SourceClient interface {
	// Fetch retrieves the raw payload for the source.
	// The returned error wraps ErrSourceUnavailable when the source cannot
	// be reached or returns a non-success status.
	Fetch(ctx context.Context, src config.Source) (*domain.RawArtifact, error)
}

// HTTPClient fetches JSON payloads over plain HTTP.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	Now       func() time.Time
}

// NewHTTPClient creates an HTTP source client.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultFetchTimeout
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = constants.AppName + "/1.0"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: ua,
		now:       now,
	}
}

// Fetch retrieves the source payload with a single GET request.
func (c *HTTPClient) Fetch(ctx context.Context, src config.Source) (*domain.RawArtifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, gleanererrors.Wrapf(err, "failed to build request for source %s", src.ID)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w: %s", src.ID, gleanererrors.ErrSourceUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w: %s", src.ID, gleanererrors.ErrSourceUnavailable, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("source %s: %w: http status %d", src.ID, gleanererrors.ErrSourceUnavailable, resp.StatusCode)
	}

	return &domain.RawArtifact{
		SourceID:  src.ID,
		FetchedAt: c.now().UTC(),
		Payload:   body,
	}, nil
}

// Compile-time interface check.
var _ SourceClient = (*HTTPClient)(nil)
