package ffprobe

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"video-branding-worker/apperror"
	"video-branding-worker/dto"
)

// Prober is the Media Inspector used by both the submission pre-flight and
// the worker.
type Prober struct {
	Binary string
}

func NewProber(binary string) *Prober {
	return &Prober{Binary: binary}
}

func (p *Prober) Inspect(ctx context.Context, path string) (dto.MediaDescriptor, error) {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return dto.MediaDescriptor{}, err
	}
	desc, err := result.Descriptor()
	if err != nil {
		return dto.MediaDescriptor{}, &apperror.MediaReadError{Path: path, Err: err}
	}
	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("width", desc.Width).
		Int("height", desc.Height).
		Bool("has_audio", desc.HasAudioStream).
		Float64("duration_seconds", desc.DurationSeconds).
		Float64("frame_rate", desc.FrameRate).
		Str("size", humanize.IBytes(uint64(desc.FileSizeBytes))).
		Msg("inspected media")
	return desc, nil
}
