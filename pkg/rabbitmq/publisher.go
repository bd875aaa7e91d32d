package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-branding-worker/dto"
)

var ErrPublishNotConfirmed = errors.New("broker did not confirm publish")

type Publisher interface {
	Publish(ctx context.Context, message dto.JobMessage) error
}

type publisher struct {
	conn     *amqp.Connection
	topology Topology
}

func NewPublisher(conn *amqp.Connection, topology Topology) Publisher {
	return &publisher{conn: conn, topology: topology}
}

// Publish sends a persistent message and waits for the broker to confirm it.
func (p *publisher) Publish(ctx context.Context, message dto.JobMessage) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declare(ch, p.topology); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		p.topology.Exchange,
		p.topology.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    message.JobId.String(),
		},
	)
	if err != nil {
		return err
	}
	ok, err := confirmation.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPublishNotConfirmed
	}

	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Str("routing_key", p.topology.RoutingKey).Msg("job enqueued")
	return nil
}
