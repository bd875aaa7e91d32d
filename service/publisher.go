package service

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"video-branding-worker/apperror"
	"video-branding-worker/constant"
	"video-branding-worker/storage"
)

const DefaultArtifactPrefix = "processed"

// Publisher uploads rendered videos under keys that never repeat within a
// process, so republishing a job cannot overwrite an earlier artifact.
type Publisher struct {
	store  storage.ArtifactStore
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

func NewPublisher(store storage.ArtifactStore, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultArtifactPrefix
	}
	return &Publisher{store: store, prefix: prefix, now: time.Now}
}

// Key returns <prefix>/video_<jobId>_<unixNanos>.mp4 with a timestamp
// strictly greater than any previously returned.
func (p *Publisher) Key(jobId uuid.UUID) string {
	p.mu.Lock()
	ts := p.now().UnixNano()
	if ts <= p.last {
		ts = p.last + 1
	}
	p.last = ts
	p.mu.Unlock()

	return path.Join(p.prefix, fmt.Sprintf("video_%s_%d.mp4", jobId, ts))
}

func (p *Publisher) Publish(ctx context.Context, localPath string, jobId uuid.UUID) (string, error) {
	key := p.Key(jobId)
	ref, err := p.store.Put(ctx, key, localPath, constant.ContentTypeMP4)
	if err != nil {
		return "", &apperror.PublishError{Key: key, Err: err}
	}
	zerolog.Ctx(ctx).Info().Str("output_key", key).Str("output_ref", ref).Msg("artifact published")
	return ref, nil
}
