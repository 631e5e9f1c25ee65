// Package publish delivers aggregated datasets to the external destination.
// This file implements optional snapshot archival to S3-compatible storage.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mrz1836/gleaner/internal/config"
	"github.com/mrz1836/gleaner/internal/domain"
	gleanererrors "github.com/mrz1836/gleaner/internal/errors"
)

// Archiver uploads dataset snapshots to an S3-compatible bucket after a
// successful publish. Archival is best effort: the Publisher logs failures
// instead of failing the run.
type Archiver struct {
	client *minio.Client
	bucket string
}

// NewArchiver creates an Archiver from the archive configuration.
// Returns nil with no error when archival is disabled.
func NewArchiver(cfg config.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	accessKey := os.Getenv(cfg.AccessKeyEnvVar)
	secretKey := os.Getenv(cfg.SecretKeyEnvVar)
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("archive credentials (%s, %s) not set: %w",
			cfg.AccessKeyEnvVar, cfg.SecretKeyEnvVar, gleanererrors.ErrSecretMissing)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, gleanererrors.Wrap(err, "failed to create archive client")
	}

	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Archive uploads the dataset snapshot keyed by run ID.
func (a *Archiver) Archive(ctx context.Context, runID string, dataset *domain.AggregatedDataset) error {
	snapshot, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return gleanererrors.Wrap(err, "failed to encode dataset snapshot")
	}

	key := fmt.Sprintf("snapshots/%s/dataset.json", runID)
	_, err = a.client.PutObject(
		ctx,
		a.bucket,
		key,
		bytes.NewReader(snapshot),
		int64(len(snapshot)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return gleanererrors.Wrapf(err, "failed to archive snapshot %s", key)
	}

	return nil
}
