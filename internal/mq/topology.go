package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEdits   Exchange = "retoucher.edits"
	ExchangeResults Exchange = "retoucher.results"
	ExchangeDLQ     Exchange = "retoucher.dlq"
)

// Queues — имена очередей.
const (
	QueueEditsSubmitted Queue = "edits.submitted"
	QueueEditsCompleted Queue = "edits.completed"
	QueueEditsEscalated Queue = "edits.escalated"
	QueueDLQEdits       Queue = "dlq.edits"
)

// Routing keys.
const (
	RoutingKeySubmitted RoutingKey = "submitted"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyEscalated RoutingKey = "escalated"
	RoutingKeyDLQEdits  RoutingKey = "edits"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEdits, "direct"},
		{ExchangeResults, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEdits),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// edits.submitted — с DLQ (после исчерпания requeue задача уходит в DLQ)
		{QueueEditsSubmitted, dlqArgs},

		// edits.completed / edits.escalated — события для Task Sink, без DLQ
		{QueueEditsCompleted, nil},
		{QueueEditsEscalated, nil},

		// dlq.edits — сама DLQ очередь
		{QueueDLQEdits, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueEditsSubmitted, RoutingKeySubmitted, ExchangeEdits},
		{QueueEditsCompleted, RoutingKeyCompleted, ExchangeResults},
		{QueueEditsEscalated, RoutingKeyEscalated, ExchangeResults},
		{QueueDLQEdits, RoutingKeyDLQEdits, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Retoucher RabbitMQ Topology:

    retoucher.edits (direct)
    └── edits.submitted [routing: submitted]
            Consumer: Engine
            DLQ: dlq.edits

    retoucher.results (direct)
    ├── edits.completed [routing: completed]
    │       Consumer: Task Sink
    └── edits.escalated [routing: escalated]
            Consumer: Task Sink

    retoucher.dlq (direct)
    └── dlq.edits [routing: edits]
            Manual processing
  `
}
