package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"travel-diary-backend/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinIOStore keeps photos in a MinIO bucket
type MinIOStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewMinIOStore connects to MinIO and creates the bucket if it does not exist
func NewMinIOStore(ctx context.Context, cfg config.StorageConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("Created bucket")
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket, presignTTL: cfg.PresignTTL}, nil
}

// Save uploads the file
func (s *MinIOStore) Save(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// Delete removes the object
func (s *MinIOStore) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Serve redirects to a pre-signed GET URL
func (s *MinIOStore) Serve(w http.ResponseWriter, r *http.Request, name string) {
	if !ValidName(name) {
		http.NotFound(w, r)
		return
	}

	u, err := s.client.PresignedGetObject(r.Context(), s.bucket, name, s.presignTTL, nil)
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("Failed to presign photo URL")
		http.Error(w, "failed to locate photo", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, u.String(), http.StatusFound)
}
