package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"video-branding-worker/apperror"
	"video-branding-worker/dto"
	"video-branding-worker/pkg/ffmpeg"
	"video-branding-worker/pkg/filtergraph"
	"video-branding-worker/repository"
)

const (
	progressLogStep   = 5
	statusWriteTries  = 5
	outputFileName    = "processed.mp4"
	maxErrorMessage   = 2048
	statusWriteMaxGap = 5 * time.Second
)

type Service interface {
	Process(ctx context.Context, message dto.JobMessage) error
}

// Dependencies are built once per process and shared by every worker.
type Dependencies struct {
	Repo       repository.JobRepository
	Journal    repository.FailureJournal
	Fetcher    InputFetcher
	Inspector  Inspector
	Transcoder Transcoder
	Publisher  ArtifactPublisher

	DisclaimerRef string
	Fonts         filtergraph.Fonts
	TempDir       string
}

type service struct {
	Dependencies
	statusBackOff func() backoff.BackOff
}

func NewService(deps Dependencies) Service {
	if deps.TempDir == "" {
		deps.TempDir = os.TempDir()
	}
	return &service{Dependencies: deps, statusBackOff: newStatusBackOff}
}

func newStatusBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = statusWriteMaxGap
	return bo
}

// Process runs one job to a terminal state. Once the job is claimed every
// failure is persisted as Failed and returned joined with
// apperror.ErrNonRetryable. Errors before the claim, errors caused by
// shutdown, and failures that could not be persisted are returned as is so
// the message is redelivered.
func (s *service) Process(ctx context.Context, message dto.JobMessage) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("job_id", message.JobId.String()).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("processing job")

	job, err := s.Repo.FindJobById(ctx, message.JobId)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			logger.Error().Err(err).Msg("job record does not exist")
			return errors.Join(apperror.ErrNonRetryable, err)
		}
		logger.Error().Err(err).Msg("failed to find job by id")
		return err
	}

	if job.Status.IsTerminal() {
		logger.Info().Str("status", job.Status.String()).Msg("job already finished, skipping")
		return nil
	}

	if err := s.Repo.MarkProcessing(ctx, message.JobId); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			logger.Info().Err(err).Msg("job finished concurrently, skipping")
			return nil
		}
		logger.Error().Err(err).Msg("failed to update job status")
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Interrupted by shutdown. The job stays Processing and is
			// re-claimed when the broker redelivers the message.
			logger.Warn().Err(err).Msg("job interrupted, leaving for redelivery")
			return
		}
		if persistErr := s.fail(ctx, message, err); persistErr != nil {
			// The job is still Processing. Redelivery re-claims it.
			err = errors.Join(err, persistErr)
			return
		}
		err = errors.Join(apperror.ErrNonRetryable, err)
	}()

	caption, err := filtergraph.ParseCaption(message.CaptionText)
	if err != nil {
		logger.Error().Err(err).Msg("invalid caption")
		return err
	}

	if err = os.MkdirAll(s.TempDir, os.ModePerm); err != nil {
		logger.Error().Err(err).Msg("failed to create temp root")
		return err
	}
	workDir, err := os.MkdirTemp(s.TempDir, message.JobId.String()+"-")
	if err != nil {
		logger.Error().Err(err).Msg("failed to create job directory")
		return err
	}
	defer os.RemoveAll(workDir)

	inputs, err := s.fetchInputs(ctx, message, filepath.Join(workDir, "input"))
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch inputs")
		return err
	}

	desc, err := s.Inspector.Inspect(ctx, inputs.source)
	if err != nil {
		logger.Error().Err(err).Msg("failed to inspect source video")
		return err
	}
	logger.Info().
		Int("width", desc.Width).
		Int("height", desc.Height).
		Bool("audio", desc.HasAudioStream).
		Float64("duration", desc.DurationSeconds).
		Msg("source inspected")

	graph, err := filtergraph.Build(desc, caption, s.Fonts)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build filter graph")
		return err
	}

	logger.Info().Str("variant", graph.Variant.String()).Msg("transcode file")
	result, err := s.Transcoder.Run(ctx, ffmpeg.Job{
		SourcePath:      inputs.source,
		TemplatePath:    inputs.template,
		DisclaimerPath:  inputs.disclaimer,
		OutputPath:      filepath.Join(workDir, "output", outputFileName),
		Graph:           graph,
		DurationSeconds: desc.DurationSeconds,
	}, progressLogger(ctx))
	if err != nil {
		logger.Error().Err(err).Msg("failed to transcode file")
		return err
	}

	logger.Info().Msg("upload transcode file")
	outputRef, err := s.Publisher.Publish(ctx, result.OutputPath, message.JobId)
	if err != nil {
		logger.Error().Err(err).Msg("failed to publish artifact")
		return err
	}

	if err = s.Repo.MarkCompleted(ctx, message.JobId, outputRef); err != nil {
		logger.Error().Err(err).Msg("failed to update job status")
		return err
	}

	logger.Info().Str("output_ref", outputRef).Msg("job completed")
	return nil
}

type jobInputs struct {
	source     string
	template   string
	disclaimer string
}

// fetchInputs resolves the three inputs in parallel.
func (s *service) fetchInputs(ctx context.Context, message dto.JobMessage, dir string) (jobInputs, error) {
	var in jobInputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.Fetcher.Fetch(gctx, message.SourceVideoRef, filepath.Join(dir, "source"+refExt(message.SourceVideoRef, ".mp4")))
		if err != nil {
			return &apperror.MediaReadError{Path: message.SourceVideoRef, Err: err}
		}
		in.source = p
		return nil
	})
	g.Go(func() error {
		p, err := s.Fetcher.Fetch(gctx, message.OverlayTemplateRef, filepath.Join(dir, "template"+refExt(message.OverlayTemplateRef, ".png")))
		if err != nil {
			return &apperror.AssetMissingError{Asset: "overlay template", Path: message.OverlayTemplateRef, Err: err}
		}
		in.template = p
		return nil
	})
	g.Go(func() error {
		p, err := s.Fetcher.Fetch(gctx, s.DisclaimerRef, filepath.Join(dir, "disclaimer"+refExt(s.DisclaimerRef, ".jpeg")))
		if err != nil {
			return &apperror.AssetMissingError{Asset: "disclaimer image", Path: s.DisclaimerRef, Err: err}
		}
		in.disclaimer = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return jobInputs{}, err
	}
	return in, nil
}

// fail persists the terminal status and journals the failure. The writes use
// a context detached from cancellation so a failing job is always recorded.
// It returns an error only when the Failed status could not be written.
func (s *service) fail(ctx context.Context, message dto.JobMessage, cause error) error {
	logger := zerolog.Ctx(ctx)
	ctx = context.WithoutCancel(ctx)
	errMsg := truncate(cause.Error(), maxErrorMessage)

	operation := func() (struct{}, error) {
		err := s.Repo.MarkFailed(ctx, message.JobId, errMsg)
		if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, repository.ErrJobNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(s.statusBackOff()), backoff.WithMaxTries(statusWriteTries))
	switch {
	case errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, repository.ErrJobNotFound):
		logger.Warn().Err(err).Msg("job left processing elsewhere, not marking failed")
	case err != nil:
		logger.Error().Err(err).Msg("failed to mark job failed")
		return fmt.Errorf("mark job failed: %w", err)
	}

	if s.Journal == nil {
		return nil
	}
	record := repository.FailureRecord{
		JobId:        message.JobId,
		Kind:         apperror.Kind(cause),
		Error:        cause.Error(),
		EngineStderr: apperror.EngineStderr(cause),
		Message:      message.CaptionText,
	}
	if err := s.Journal.Record(ctx, record); err != nil {
		logger.Error().Err(err).Msg("failed to record failure")
	}
	logger.Warn().Str("kind", record.Kind).Msg("job failed")
	return nil
}

// progressLogger logs engine progress in steps of progressLogStep percent.
func progressLogger(ctx context.Context) ffmpeg.ProgressFunc {
	logger := zerolog.Ctx(ctx)
	last := -progressLogStep
	return func(p ffmpeg.Progress) {
		if p.Percent < last+progressLogStep && p.Percent != 100 {
			return
		}
		last = p.Percent
		logger.Info().Int("percent", p.Percent).Dur("out_time", p.OutTime).Msg("transcode progress")
	}
}

// refExt returns the extension of the path part of ref, or fallback.
func refExt(ref, fallback string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(filepath.ToSlash(p)))
	if ext == "" || len(ext) > 6 {
		return fallback
	}
	return ext
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
