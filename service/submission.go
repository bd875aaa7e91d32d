package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"video-branding-worker/apperror"
	"video-branding-worker/config"
	"video-branding-worker/constant"
	"video-branding-worker/dto"
	"video-branding-worker/entities"
	"video-branding-worker/pkg/filtergraph"
	"video-branding-worker/repository"
)

const targetAspectRatio = 16.0 / 9.0

var (
	videoContentTypes    = []string{constant.ContentTypeMP4}
	templateContentTypes = []string{constant.ContentTypeJPEG, constant.ContentTypePNG}
)

type SubmissionService interface {
	Submit(ctx context.Context, req dto.SubmitRequest) (*entities.Job, error)
}

type submissionService struct {
	repo            repository.JobRepository
	inspector       Inspector
	queue           Enqueuer
	limits          config.Limits
	defaultTemplate string
}

func NewSubmissionService(repo repository.JobRepository, inspector Inspector, queue Enqueuer, limits config.Limits, defaultTemplate string) SubmissionService {
	return &submissionService{
		repo:            repo,
		inspector:       inspector,
		queue:           queue,
		limits:          limits,
		defaultTemplate: defaultTemplate,
	}
}

// Submit validates the request, persists a Pending job and then enqueues it.
// The record is committed before the message is published so a worker never
// receives a job it cannot find. A job whose message could not be published
// is marked Failed. Nothing is created when validation fails.
func (s *submissionService) Submit(ctx context.Context, req dto.SubmitRequest) (*entities.Job, error) {
	caption, err := filtergraph.ComposeCaption(req.Name, req.Speciality, req.Hospital, req.City)
	if err != nil {
		return nil, err
	}

	templatePath := req.TemplatePath
	if templatePath == "" {
		templatePath = s.defaultTemplate
	}
	if err := CheckContentType("template", templatePath, templateContentTypes...); err != nil {
		return nil, err
	}
	if err := CheckContentType("video", req.VideoPath, videoContentTypes...); err != nil {
		return nil, err
	}

	// Reject oversize uploads before spending a probe on them.
	info, err := os.Stat(req.VideoPath)
	if err != nil {
		return nil, &apperror.MediaReadError{Path: req.VideoPath, Err: err}
	}
	if info.Size() > s.limits.MaxSizeBytes {
		return nil, oversize(info.Size(), s.limits.MaxSizeBytes)
	}

	desc, err := s.inspector.Inspect(ctx, req.VideoPath)
	if err != nil {
		return nil, err
	}
	if err := ValidateVideo(desc, s.limits); err != nil {
		return nil, err
	}

	job := &entities.Job{
		ID:         uuid.New(),
		OwnerId:    req.OwnerId,
		Name:       req.Name,
		Speciality: req.Speciality,
		Hospital:   req.Hospital,
		City:       req.City,
		ImageRef:   templatePath,
		VideoRef:   req.VideoPath,
		Status:     constant.JobStatusPending,
	}
	message := dto.JobMessage{
		JobId:              job.ID,
		SourceVideoRef:     req.VideoPath,
		OverlayTemplateRef: templatePath,
		CaptionText:        caption,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.queue.Publish(ctx, message); err != nil {
		err = fmt.Errorf("enqueue job: %w", err)
		if markErr := s.repo.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error()); markErr != nil {
			zerolog.Ctx(ctx).Error().Err(markErr).Str("job_id", job.ID.String()).Msg("failed to mark unqueued job failed")
			return nil, errors.Join(err, markErr)
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", job.ID.String()).
		Str("size", humanize.IBytes(uint64(desc.FileSizeBytes))).
		Float64("duration", desc.DurationSeconds).
		Msg("job submitted")
	return job, nil
}

// ValidateVideo applies the upload limits to an inspected source.
func ValidateVideo(desc dto.MediaDescriptor, limits config.Limits) error {
	if desc.FileSizeBytes > limits.MaxSizeBytes {
		return oversize(desc.FileSizeBytes, limits.MaxSizeBytes)
	}
	if desc.DurationSeconds > limits.MaxDurationSeconds {
		return apperror.NewValidationError("video", "duration %.1fs exceeds the %.0fs limit", desc.DurationSeconds, limits.MaxDurationSeconds)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return apperror.NewValidationError("video", "unknown dimensions %dx%d", desc.Width, desc.Height)
	}
	ratio := float64(desc.Width) / float64(desc.Height)
	if math.Abs(ratio-targetAspectRatio) > limits.AspectTolerance {
		return apperror.NewValidationError("video", "aspect ratio %dx%d is not 16:9", desc.Width, desc.Height)
	}
	return nil
}

// CheckContentType sniffs the file at path and accepts it only if it matches
// one of allowed.
func CheckContentType(field, path string, allowed ...string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return apperror.NewValidationError(field, "cannot read %q: %v", path, err)
	}
	for _, a := range allowed {
		if mtype.Is(a) {
			return nil
		}
	}
	return apperror.NewValidationError(field, "unsupported file type %s", mtype.String())
}

func oversize(size, limit int64) error {
	return apperror.NewValidationError("video", "size %s exceeds the %s limit", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
}
