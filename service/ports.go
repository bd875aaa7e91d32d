package service

import (
	"context"

	"github.com/google/uuid"
	"video-branding-worker/dto"
	"video-branding-worker/pkg/ffmpeg"
)

type Inspector interface {
	Inspect(ctx context.Context, path string) (dto.MediaDescriptor, error)
}

type Transcoder interface {
	Run(ctx context.Context, job ffmpeg.Job, onProgress ffmpeg.ProgressFunc) (ffmpeg.Result, error)
}

// InputFetcher makes a job input available on the local filesystem.
type InputFetcher interface {
	Fetch(ctx context.Context, ref, dst string) (string, error)
}

type ArtifactPublisher interface {
	Publish(ctx context.Context, localPath string, jobId uuid.UUID) (string, error)
}

type Enqueuer interface {
	Publish(ctx context.Context, message dto.JobMessage) error
}
