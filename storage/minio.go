package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"video-branding-worker/config"
)

func NewMinIOClient(cfg config.MinIO) (*minio.Client, error) {
	client, err := minio.New(cfg.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessID, cfg.SecretAccessKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

type MinIOStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

func NewMinIOStore(client *minio.Client, bucket, publicBaseURL string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, publicBaseURL: publicBaseURL}
}

func (s *MinIOStore) Put(ctx context.Context, key, localPath, contentType string) (string, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio put %s/%s: %w", s.bucket, key, err)
	}
	zerolog.Ctx(ctx).Debug().Str("bucket", s.bucket).Str("key", key).Int64("size", info.Size).Msg("uploaded artifact to minio")

	if s.publicBaseURL != "" {
		return joinURL(s.publicBaseURL, key), nil
	}
	return joinURL(s.client.EndpointURL().String(), s.bucket+"/"+key), nil
}

func (s *MinIOStore) Close() error {
	return nil
}
