// Package fetch retrieves raw artifacts from configured external sources.
// This file implements the browser-rendered client for sources that build
// their listings with client-side JavaScript.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/constants"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// BrowserClient fetches pages through a headless browser and captures the
// rendered document body as the raw artifact payload.
type BrowserClient struct {
	timeout time.Duration
	now     func() time.Time
}

// BrowserClientOptions configures a BrowserClient.
type BrowserClientOptions struct {
	Timeout time.Duration
	Now     func() time.Time
}

// NewBrowserClient creates a browser-rendered source client.
func NewBrowserClient(opts BrowserClientOptions) *BrowserClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultFetchTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &BrowserClient{timeout: timeout, now: now}
}

// Fetch navigates to the source URL, waits for the document to become ready,
// and returns the rendered body HTML as the artifact payload.
func (c *BrowserClient) Fetch(ctx context.Context, src config.Source) (*domain.RawArtifact, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(fetchCtx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var rendered string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(src.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("body", &rendered, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w: %s", src.ID, gleanererrors.ErrSourceUnavailable, err.Error())
	}

	return &domain.RawArtifact{
		SourceID:  src.ID,
		FetchedAt: c.now().UTC(),
		Payload:   []byte(rendered),
	}, nil
}

// Compile-time interface check.
var _ SourceClient = (*BrowserClient)(nil)
