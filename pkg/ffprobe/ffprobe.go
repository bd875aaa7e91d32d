// Package ffprobe wraps ffprobe JSON output and reduces it to the media
// descriptor the worker needs to size overlays and validate uploads.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"video-branding-worker/apperror"
	"video-branding-worker/dto"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against path and decodes the JSON response. A
// missing file or unparseable output is reported as a MediaReadError.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, &apperror.MediaReadError{Path: path, Err: errors.New("empty path")}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, &apperror.MediaReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return Result{}, &apperror.MediaReadError{Path: path, Err: errors.New("is a directory")}
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, &apperror.MediaReadError{Path: path, Err: fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))}
		}
		return Result{}, &apperror.MediaReadError{Path: path, Err: fmt.Errorf("ffprobe: %w", err)}
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, &apperror.MediaReadError{Path: path, Err: fmt.Errorf("ffprobe parse: %w", err)}
	}
	return result, nil
}

// VideoStream returns the first video stream, if any.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStream returns the first audio stream, if any.
func (r Result) AudioStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	d := parseFloat(r.Format.Duration)
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// Descriptor reduces the probe result to a MediaDescriptor. A container
// without a video stream of positive dimensions has no usable metadata.
func (r Result) Descriptor() (dto.MediaDescriptor, error) {
	video, ok := r.VideoStream()
	if !ok {
		return dto.MediaDescriptor{}, errors.New("no video stream")
	}
	if video.Width <= 0 || video.Height <= 0 {
		return dto.MediaDescriptor{}, fmt.Errorf("invalid video dimensions %dx%d", video.Width, video.Height)
	}
	desc := dto.MediaDescriptor{
		Width:           video.Width,
		Height:          video.Height,
		DurationSeconds: r.DurationSeconds(),
		FileSizeBytes:   r.SizeBytes(),
		FrameRate:       parseRate(video.RFrameRate),
		VideoCodec:      video.CodecName,
	}
	if desc.FrameRate == 0 {
		desc.FrameRate = parseRate(video.AvgFrameRate)
	}
	if audio, ok := r.AudioStream(); ok {
		desc.HasAudioStream = true
		desc.AudioCodec = audio.CodecName
	}
	return desc, nil
}

// parseRate parses ffprobe rationals such as "30000/1001"; 0 means unknown.
func parseRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		f := parseFloat(num)
		if math.IsNaN(f) || f <= 0 {
			return 0
		}
		return f
	}
	n, d := parseFloat(num), parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || n <= 0 || d <= 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
