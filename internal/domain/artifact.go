package domain

import "time"

// RawArtifact is one unprocessed fetched record. Artifacts are immutable
// once written and are owned by the workspace that fetched them.
type RawArtifact struct {
	// SourceID identifies which configured source produced this artifact.
	SourceID string `json:"source_id"`

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time `json:"fetched_at"`

	// Payload is the raw response body, unparsed.
	Payload []byte `json:"payload"`
}

// FetchResult pairs a source with either an artifact or a per-item error.
// Per-item errors are recorded and skipped; only consecutive failures past
// the configured threshold abort the fetch phase.
type FetchResult struct {
	// SourceID identifies the source this result belongs to.
	SourceID string `json:"source_id"`

	// Artifact is the fetched record (nil when Err is set).
	Artifact *RawArtifact `json:"artifact,omitempty"`

	// Err is the per-item fetch error (nil on success).
	Err error `json:"-"`
}
