package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"video-branding-worker/apperror"
	"video-branding-worker/pkg/filtergraph"
)

const (
	DefaultPreset = "fast"

	stderrTailBytes      = 64 * 1024
	progressBuffer       = 16
	progressDrainTimeout = 2 * time.Second
)

// Job is one engine invocation. Inputs are passed to the engine in the order
// the filter graph expects them.
type Job struct {
	SourcePath      string
	TemplatePath    string
	DisclaimerPath  string
	OutputPath      string
	Graph           filtergraph.FilterGraph
	DurationSeconds float64
}

type Result struct {
	OutputPath string
}

type Progress struct {
	Percent int
	OutTime time.Duration
}

// ProgressFunc receives progress on a side channel. It may be slow; events are
// dropped rather than stalling the engine.
type ProgressFunc func(Progress)

type Executor struct {
	Binary string
	Preset string
}

func NewExecutor(binary, preset string) *Executor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(preset) == "" {
		preset = DefaultPreset
	}
	return &Executor{Binary: binary, Preset: preset}
}

// CheckAssets verifies every filesystem input before the engine starts.
func CheckAssets(job Job) error {
	assets := []struct{ name, path string }{
		{"source video", job.SourcePath},
		{"overlay template", job.TemplatePath},
		{"disclaimer image", job.DisclaimerPath},
	}
	for i, font := range job.Graph.FontFiles {
		name := "font"
		if i == 0 {
			name = "bold font"
		} else if i == 1 {
			name = "regular font"
		}
		assets = append(assets, struct{ name, path string }{name, font})
	}
	for _, a := range assets {
		if strings.TrimSpace(a.path) == "" {
			return &apperror.AssetMissingError{Asset: a.name, Path: a.path, Err: errors.New("path not configured")}
		}
		info, err := os.Stat(a.path)
		if err != nil {
			return &apperror.AssetMissingError{Asset: a.name, Path: a.path, Err: err}
		}
		if info.IsDir() {
			return &apperror.AssetMissingError{Asset: a.name, Path: a.path, Err: errors.New("is a directory")}
		}
	}
	return nil
}

// Args returns the engine command line for job.
func (e *Executor) Args(job Job) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-nostats",
		"-progress", "pipe:1",
		"-i", job.SourcePath,
		"-i", job.TemplatePath,
		"-i", job.DisclaimerPath,
		"-filter_complex", job.Graph.String(),
	}
	for _, label := range job.Graph.OutputLabels() {
		args = append(args, "-map", "["+label+"]")
	}
	args = append(args, "-c:v", "libx264", "-preset", e.Preset)
	if job.Graph.Variant == filtergraph.WithAudio {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args, "-movflags", "+faststart", job.OutputPath)
	return args
}

// Run blocks until the engine exits. Engine failures are returned as
// TranscodeError carrying the tail of the engine's stderr.
func (e *Executor) Run(ctx context.Context, job Job, onProgress ProgressFunc) (Result, error) {
	if err := CheckAssets(job); err != nil {
		return Result{}, err
	}
	if len(job.Graph.Stages) == 0 {
		return Result{}, &apperror.TranscodeError{Message: "empty filter graph"}
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return Result{}, &apperror.TranscodeError{Message: "create output dir", Err: err}
	}

	args := e.Args(job)
	zerolog.Ctx(ctx).Debug().Str("binary", e.Binary).Strs("ffmpeg_args", args).Msg("starting ffmpeg")

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, &apperror.TranscodeError{Message: "attach stdout", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return Result{}, &apperror.TranscodeError{Message: "start engine", Err: err}
	}

	events := make(chan Progress, progressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range events {
			if onProgress != nil {
				onProgress(p)
			}
		}
	}()

	total := job.DurationSeconds + filtergraph.TrailerSeconds
	readProgress(stdout, total, func(p Progress) {
		select {
		case events <- p:
		default:
		}
	})

	waitErr := cmd.Wait()
	close(events)
	select {
	case <-drained:
	case <-time.After(progressDrainTimeout):
	}

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, &apperror.TranscodeError{Message: "engine interrupted", EngineStderr: stderr.String(), Err: ctxErr}
		}
		return Result{}, &apperror.TranscodeError{Message: "engine exited with error", EngineStderr: stderr.String(), Err: waitErr}
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		return Result{}, &apperror.TranscodeError{Message: "engine produced no output", EngineStderr: stderr.String(), Err: err}
	}
	return Result{OutputPath: job.OutputPath}, nil
}

// readProgress consumes "-progress" key=value output until EOF. Percent is
// relative to totalSeconds and only reported when it increases.
func readProgress(r io.Reader, totalSeconds float64, emit func(Progress)) {
	scanner := bufio.NewScanner(r)
	last := -1
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// ffmpeg reports microseconds under both keys.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			outTime := time.Duration(us) * time.Microsecond
			percent := 0
			if totalSeconds > 0 {
				percent = int(outTime.Seconds() / totalSeconds * 100)
			}
			if percent > 99 {
				percent = 99
			}
			if percent > last {
				last = percent
				emit(Progress{Percent: percent, OutTime: outTime})
			}
		case "progress":
			if value == "end" && last < 100 {
				last = 100
				emit(Progress{Percent: 100})
			}
		}
	}
	// Drain anything left so the engine never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
