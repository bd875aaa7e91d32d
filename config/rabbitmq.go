package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const rabbitMQDialTries = 5

// URL returns the AMQP connection string.
func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", url.PathEscape(r.User), url.PathEscape(r.Pass), r.Host, r.Port)
}

// NewRabbitMQConn dials the broker with exponential backoff. The caller owns
// the connection and must close it on shutdown.
func NewRabbitMQConn(ctx context.Context, cfg RabbitMQ) (*amqp.Connection, error) {
	connAddr := cfg.URL()
	properties := amqp.NewConnectionProperties()
	properties.SetClientConnectionName("video-branding-worker")

	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.DialConfig(connAddr, amqp.Config{
			Heartbeat:  10 * time.Second,
			Properties: properties,
		})
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("host", cfg.Host).Msg("Failed to connect to RabbitMQ. Retrying...")
			return nil, err
		}

		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(rabbitMQDialTries))
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("host", cfg.Host).Msg("Successfully connected to RabbitMQ")
	return conn, nil
}
