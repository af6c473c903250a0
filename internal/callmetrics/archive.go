package callmetrics

import (
	"context"
	"fmt"
	"io"

	"voice_sales_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOArchive is the S3-compatible store behind ArchiveSink.
type MinIOArchive struct {
	client *minio.Client
}

// NewMinIOArchive creates a MinIO client from configuration.
func NewMinIOArchive(cfg config.MinIOConfig) (*MinIOArchive, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOArchive{client: client}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (a *MinIOArchive) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := a.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// PutObject uploads body under key.
func (a *MinIOArchive) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error {
	_, err := a.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

