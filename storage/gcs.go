package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"video-branding-worker/config"
)

type GCSStore struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

// NewGCSStore uses the service account file when configured and application
// default credentials otherwise.
func NewGCSStore(ctx context.Context, cfg config.Storage) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.GCSCredsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, publicBaseURL: cfg.PublicBaseURL}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, f); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("gcs copy %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("gcs finalize %s: %w", key, err)
	}
	zerolog.Ctx(ctx).Debug().Str("bucket", s.bucket).Str("key", key).Msg("uploaded artifact to gcs")

	if s.publicBaseURL != "" {
		return joinURL(s.publicBaseURL, key), nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
