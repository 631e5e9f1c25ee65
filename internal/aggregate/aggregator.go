// Package aggregate normalizes raw artifacts into a deterministic dataset.
//
// Aggregation is a pure transformation: the same set of artifacts always
// produces byte-identical output, regardless of the order the artifacts
// arrive in. That property is what makes re-running a failed pipeline safe.
package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// listingPayload is the wire shape of a raw artifact payload.
type listingPayload struct {
	Items []listingItem `json:"items"`
}

// listingItem is one listing inside an artifact payload.
type listingItem struct {
	SKU   string `json:"sku"`
	Title string `json:"title"`
	Price int    `json:"price_cents"`
	URL   string `json:"url"`
}

// Aggregator merges raw artifacts into an AggregatedDataset.
type Aggregator struct {
	maxSkipRatio float64
	logger       zerolog.Logger
	now          func() time.Time
}

// New creates an Aggregator that tolerates up to maxSkipRatio malformed
// artifacts before aborting.
func New(maxSkipRatio float64, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		maxSkipRatio: maxSkipRatio,
		logger:       logger,
		now:          time.Now,
	}
}

// WithNow overrides the timestamp source. Used by tests.
func (a *Aggregator) WithNow(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate merges the artifacts into a single normalized dataset.
//
// Malformed artifacts are skipped and counted. The phase aborts, wrapping
// ErrAggregationAborted, when the skipped fraction exceeds the tolerated
// ratio or when no records survive at all. An empty dataset is treated as
// an abort rather than a publishable result, since publishing it would
// erase the previous dataset from the destination's point of view.
func (a *Aggregator) Aggregate(artifacts []*domain.RawArtifact) (*domain.AggregatedDataset, error) {
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no artifacts to aggregate: %w", gleanererrors.ErrAggregationAborted)
	}

	// Keyed by SKU. Ties across sources resolve by ordering, never by
	// arrival position, so the merge stays order-independent.
	bySKU := make(map[string]domain.Record)
	skipped := 0

	for _, artifact := range artifacts {
		records, err := parseArtifact(artifact)
		if err != nil {
			skipped++
			a.logger.Warn().
				Err(err).
				Str("source", artifact.SourceID).
				Msg("skipping malformed artifact")
			continue
		}

		for _, rec := range records {
			existing, ok := bySKU[rec.SKU]
			if !ok || recordLess(rec, existing) {
				bySKU[rec.SKU] = rec
			}
		}
	}

	if ratio := float64(skipped) / float64(len(artifacts)); ratio > a.maxSkipRatio {
		return nil, fmt.Errorf("skipped %d of %d artifacts (ratio %.2f exceeds %.2f): %w",
			skipped, len(artifacts), ratio, a.maxSkipRatio, gleanererrors.ErrAggregationAborted)
	}

	if len(bySKU) == 0 {
		return nil, fmt.Errorf("aggregation produced zero records: %w", gleanererrors.ErrAggregationAborted)
	}

	records := make([]domain.Record, 0, len(bySKU))
	for _, rec := range bySKU {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SKU < records[j].SKU
	})

	skus := make([]string, 0, len(records))
	for _, rec := range records {
		skus = append(skus, rec.SKU)
	}

	dataset := &domain.AggregatedDataset{
		GeneratedAt:  a.now().UTC(),
		RecordCount:  len(records),
		SkippedCount: skipped,
		SKUs:         skus,
		Records:      records,
	}

	a.logger.Info().
		Int("records", dataset.RecordCount).
		Int("skipped", dataset.SkippedCount).
		Msg("aggregation complete")

	return dataset, nil
}

// parseArtifact decodes one artifact payload into records.
// Returns an error wrapping ErrMalformedArtifact when the payload is not
// valid JSON or contains no usable listings.
func parseArtifact(artifact *domain.RawArtifact) ([]domain.Record, error) {
	var payload listingPayload
	if err := json.Unmarshal(artifact.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", gleanererrors.ErrMalformedArtifact, err.Error())
	}

	records := make([]domain.Record, 0, len(payload.Items))
	for _, item := range payload.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" || item.Price < 0 {
			continue
		}
		records = append(records, domain.Record{
			SKU:      sku,
			Title:    item.Title,
			Price:    item.Price,
			URL:      item.URL,
			SourceID: artifact.SourceID,
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no usable listings", gleanererrors.ErrMalformedArtifact)
	}

	return records, nil
}

// recordLess orders two records for the same SKU.
// Lower price wins; source ID breaks ties. Both inputs come from the data,
// not from arrival order, keeping deduplication deterministic.
func recordLess(a, b domain.Record) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.SourceID < b.SourceID
}
