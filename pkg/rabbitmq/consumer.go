package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-branding-worker/apperror"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

// HandlerFunc processes one delivery. A nil error acks it. An error wrapping
// apperror.ErrNonRetryable dead-letters it. Any other error requeues it.
type HandlerFunc[T any] func(ctx context.Context, msg amqp.Delivery, dependencies T) error

type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRequeue:
		return "requeue"
	case OutcomeDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

func Decide(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, apperror.ErrNonRetryable):
		return OutcomeDeadLetter
	default:
		return OutcomeRequeue
	}
}

type consumer[T any] struct {
	conn       *amqp.Connection
	topology   Topology
	handler    HandlerFunc[T]
	numWorkers int
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queueName := c.topology.Queue
	if err := declare(ch, c.topology); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", queueName).Msg("failed to declare topology")
		return err
	}

	// One unacknowledged delivery per worker.
	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", queueName).
		Str("exchange", c.topology.Exchange).
		Str("routing_key", c.topology.RoutingKey).
		Int("workers", c.numWorkers).
		Msg("consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			logger := zerolog.Ctx(ctx).With().Int("worker_id", workerId).Logger()
			workerCtx := logger.WithContext(ctx)
			for msg := range jobs {
				dispatch(workerCtx, msg, dependencies, c.handler)
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

// dispatch runs the handler and settles the delivery exactly once.
func dispatch[T any](ctx context.Context, msg amqp.Delivery, dependencies T, handler HandlerFunc[T]) Outcome {
	err := handler(ctx, msg, dependencies)
	outcome := Decide(err)

	var settleErr error
	switch outcome {
	case OutcomeAck:
		settleErr = msg.Ack(false)
	case OutcomeRequeue:
		zerolog.Ctx(ctx).Warn().Err(err).Bool("redelivered", msg.Redelivered).Msg("failed to handle message, requeueing")
		settleErr = msg.Nack(false, true)
	case OutcomeDeadLetter:
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to handle message, sending to DLQ")
		settleErr = msg.Nack(false, false)
	}
	if settleErr != nil {
		zerolog.Ctx(ctx).Error().Err(settleErr).Str("outcome", outcome.String()).Msg("failed to settle message")
	}
	return outcome
}

func NewConsumer[T any](
	conn *amqp.Connection,
	topology Topology,
	numWorkers int,
	handler HandlerFunc[T],
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		topology:   topology,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
