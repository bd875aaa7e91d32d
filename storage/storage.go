// Package storage publishes rendered artifacts and fetches job inputs.
//
// One ArtifactStore is built per process from config and shared by every
// worker. Implementations must be safe for concurrent use.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"

	"video-branding-worker/config"
	"video-branding-worker/constant"
)

type ArtifactStore interface {
	// Put uploads the file at localPath under key and returns a reference a
	// client can use to retrieve it.
	Put(ctx context.Context, key, localPath, contentType string) (string, error)
	Close() error
}

// New builds the artifact store selected by cfg.Storage.Backend. The minio
// backend uploads through minioClient, the same client the Fetcher reads
// minio:// inputs with.
func New(ctx context.Context, cfg *config.Config, minioClient *minio.Client) (ArtifactStore, error) {
	switch cfg.Storage.Backend {
	case constant.StorageBackendMinIO:
		if minioClient == nil {
			return nil, ErrMinIONotConfigured
		}
		return NewMinIOStore(minioClient, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL), nil
	case constant.StorageBackendS3:
		return NewS3Store(cfg.Storage), nil
	case constant.StorageBackendGCS:
		return NewGCSStore(ctx, cfg.Storage)
	case constant.StorageBackendSFTP:
		return NewSFTPStore(cfg.Storage.SFTP, cfg.Storage.PublicBaseURL), nil
	case constant.StorageBackendLocal:
		return NewLocalStore(cfg.Storage.LocalRoot, cfg.Storage.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
