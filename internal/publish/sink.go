// Package publish delivers aggregated datasets to the external destination.
// This file implements the Postgres delivery sink.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// Sink delivers a dataset to the destination in a single attempt.
// Retry policy lives in the Publisher, not here.
type Sink interface {
	// Deliver writes the dataset to the destination. The write must be
	// idempotent: delivering the same dataset twice leaves the destination
	// in the same state as delivering it once.
	Deliver(ctx context.Context, runID string, dataset *domain.AggregatedDataset) error
}

// PostgresSink upserts dataset records into a Postgres table.
//
// The connection credential comes from the resolver at delivery time and
// exists only for the lifetime of the pool. Records are upserted keyed by
// SKU inside one transaction, which is what makes re-delivery idempotent.
type PostgresSink struct {
	dsn     string
	table   string
	resolve SecretResolver
}

// NewPostgresSink creates a Postgres delivery sink.
func NewPostgresSink(dsn, table string, resolve SecretResolver) *PostgresSink {
	return &PostgresSink{dsn: dsn, table: table, resolve: resolve}
}

// Deliver upserts all dataset records in one transaction.
func (s *PostgresSink) Deliver(ctx context.Context, runID string, dataset *domain.AggregatedDataset) error {
	secret, err := s.resolve()
	if err != nil {
		return err
	}

	cfg, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return gleanererrors.Wrap(err, "failed to parse publish dsn")
	}
	cfg.ConnConfig.Password = secret
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return classify(err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := fmt.Sprintf(`INSERT INTO %s
		(sku, title, price_cents, url, source_id, run_id, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (sku) DO UPDATE SET
			title = EXCLUDED.title,
			price_cents = EXCLUDED.price_cents,
			url = EXCLUDED.url,
			source_id = EXCLUDED.source_id,
			run_id = EXCLUDED.run_id,
			generated_at = EXCLUDED.generated_at`, pgx.Identifier{s.table}.Sanitize())

	for _, rec := range dataset.Records {
		if _, execErr := tx.Exec(ctx, stmt,
			rec.SKU, rec.Title, rec.Price, rec.URL, rec.SourceID,
			runID, dataset.GeneratedAt,
		); execErr != nil {
			return classify(execErr)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return classify(err)
	}

	return nil
}

// classify maps a delivery error onto the publish error taxonomy.
//
// Auth and schema problems are permanent: retrying cannot fix a bad
// credential or a missing column, so those fail the attempt immediately.
// Network and server-availability problems are transient and retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		// Class 28: invalid authorization specification
		case len(code) >= 2 && code[:2] == "28":
			return fmt.Errorf("%w: %s", gleanererrors.ErrAuthRejected, pgErr.Message)
		// Class 42: syntax error or access rule violation (missing table,
		// missing column, type mismatch)
		case len(code) >= 2 && code[:2] == "42":
			return fmt.Errorf("%w: %s", gleanererrors.ErrSchemaMismatch, pgErr.Message)
		// Class 53: insufficient resources; class 57: operator intervention;
		// class 08: connection exception
		case len(code) >= 2 && (code[:2] == "53" || code[:2] == "57" || code[:2] == "08"):
			return fmt.Errorf("%w: %s", gleanererrors.ErrTransientUpload, pgErr.Message)
		default:
			return fmt.Errorf("%w: %s (%s)", gleanererrors.ErrTransientUpload, pgErr.Message, code)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s", gleanererrors.ErrTransientUpload, netErr.Error())
	}

	// Unclassified connection-level failures are treated as transient
	return fmt.Errorf("%w: %s", gleanererrors.ErrTransientUpload, err.Error())
}

// Compile-time interface check.
var _ Sink = (*PostgresSink)(nil)
