package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-branding-worker/apperror"
	"video-branding-worker/dto"
	"video-branding-worker/service"
)

var ErrMalformedMessage = errors.New("malformed job message")

type ServiceDependencies struct {
	BrandingService service.Service
}

// JobHandler decodes a processVideo delivery and runs it. Undecodable
// payloads are dead-lettered since redelivery cannot fix them.
func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	job, err := DecodeJobMessage(msg.Body)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("message_id", msg.MessageId).Msg("failed to unmarshal job message")
		return errors.Join(apperror.ErrNonRetryable, err)
	}

	return deps.BrandingService.Process(ctx, job)
}

func DecodeJobMessage(body []byte) (dto.JobMessage, error) {
	var job dto.JobMessage
	if err := json.Unmarshal(body, &job); err != nil {
		return dto.JobMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if job.JobId == uuid.Nil {
		return dto.JobMessage{}, fmt.Errorf("%w: missing jobId", ErrMalformedMessage)
	}
	if job.SourceVideoRef == "" || job.OverlayTemplateRef == "" {
		return dto.JobMessage{}, fmt.Errorf("%w: missing input reference", ErrMalformedMessage)
	}
	return job, nil
}
