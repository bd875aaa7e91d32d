package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"video-branding-worker/config"
)

// Topology names the exchange, work queue and dead-letter pair a consumer
// binds to. Messages rejected without requeue are routed by the broker to the
// dead-letter queue.
type Topology struct {
	Exchange      string
	Kind          string
	Queue         string
	RoutingKey    string
	DLX           string
	DLQ           string
	DLQRoutingKey string
}

func TopologyFromConfig(cfg config.RabbitMQ) Topology {
	return Topology{
		Exchange:      cfg.ExchangeName,
		Kind:          cfg.Kind,
		Queue:         cfg.QueueName,
		RoutingKey:    cfg.RoutingKey,
		DLX:           cfg.DLXName,
		DLQ:           cfg.DLQName,
		DLQRoutingKey: cfg.DLQRoutingKey,
	}
}

func (t Topology) queueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    t.DLX,
		"x-dead-letter-routing-key": t.DLQRoutingKey,
	}
}

func declareExchange(ch *amqp.Channel, t Topology) error {
	return ch.ExchangeDeclare(t.Exchange, t.Kind, true, false, false, false, nil)
}

// declare creates the full topology idempotently.
func declare(ch *amqp.Channel, t Topology) error {
	if err := declareExchange(ch, t); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(t.DLX, t.Kind, true, false, false, false, nil); err != nil {
		return err
	}
	dlq, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(dlq.Name, t.DLQRoutingKey, t.DLX, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, t.queueArgs())
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil)
}
