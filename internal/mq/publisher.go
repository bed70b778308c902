package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEditSubmitted MessageType = "edit.submitted"
	MessageTypeEditCompleted MessageType = "edit.completed"
	MessageTypeEditEscalated MessageType = "edit.escalated"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// EditSubmittedPayload — payload для сообщения о новой задаче.
type EditSubmittedPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// EditCompletedPayload — payload для сообщения об успешном завершении.
type EditCompletedPayload struct {
	TaskID     uuid.UUID `json:"task_id"`
	Status     string    `json:"status"`
	Variant    string    `json:"variant"`
	Iterations int       `json:"iterations"`
}

// EditEscalatedPayload — payload для сообщения об эскалации.
// Содержит полную сводку для Task Sink.
type EditEscalatedPayload struct {
	TaskID     uuid.UUID `json:"task_id"`
	Iterations int       `json:"iterations"`
	Summary    string    `json:"summary"`
	Issues     []string  `json:"issues,omitempty"`
	Variants   []string  `json:"variants,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishEditSubmitted публикует событие о новой задаче редактирования.
// Потребитель: Engine.
func (p *Publisher) PublishEditSubmitted(ctx context.Context, taskID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEditSubmitted,
		Payload:   EditSubmittedPayload{TaskID: taskID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEdits, RoutingKeySubmitted, msg)
}

// PublishEditCompleted публикует событие об успешном завершении.
// Потребитель: Task Sink.
func (p *Publisher) PublishEditCompleted(ctx context.Context, payload EditCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEditCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeResults, RoutingKeyCompleted, msg)
}

// PublishEditEscalated публикует событие об эскалации.
// Потребитель: Task Sink.
func (p *Publisher) PublishEditEscalated(ctx context.Context, payload EditEscalatedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEditEscalated,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeResults, RoutingKeyEscalated, msg)
}
