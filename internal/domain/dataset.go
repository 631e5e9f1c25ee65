package domain

import "time"

// Record is one parsed, normalized entry of the aggregated dataset.
// The schema is deliberately small: a stable identifier plus the fields the
// destination store upserts on.
type Record struct {
	// SKU is the stable unique key for the record. Records are sorted by SKU
	// so the dataset is independent of fetch order.
	SKU string `json:"sku"`

	// Title is the human-readable name of the record.
	Title string `json:"title"`

	// Price is the integer price in minor units (cents).
	Price int `json:"price"`

	// URL is the canonical source URL for the record.
	URL string `json:"url,omitempty"`

	// SourceID identifies which source the record came from.
	SourceID string `json:"source_id"`
}

// AggregatedDataset is the deterministic merge of a set of raw artifacts.
// Given the same artifact set, aggregation reproduces byte-identical output
// regardless of fetch order.
type AggregatedDataset struct {
	// GeneratedAt is when aggregation completed.
	GeneratedAt time.Time `json:"generated_at"`

	// RecordCount is len(Records), persisted for quick inspection.
	RecordCount int `json:"record_count"`

	// SkippedCount is how many malformed artifacts were skipped.
	SkippedCount int `json:"skipped_count"`

	// SKUs is the derived index of record keys, sorted ascending.
	SKUs []string `json:"skus"`

	// Records is the sorted list of parsed records.
	Records []Record `json:"records"`
}
