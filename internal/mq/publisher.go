package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStepUpdated    MessageType = "step.updated"
	MessageTypeReleaseUpdated MessageType = "release.updated"
)

// Publisher публикует события в RabbitMQ.
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

// Message — конверт события.
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

// StepUpdatedPayload — шаг изменил состояние.
type StepUpdatedPayload struct {
	StepID     uuid.UUID         `json:"step_id"`
	ReleaseID  uuid.UUID         `json:"release_id"`
	StepNumber int               `json:"step_number"`
	Status     domain.StepStatus `json:"status"`
}

// ReleaseUpdatedPayload — релиз изменил состояние.
type ReleaseUpdatedPayload struct {
	ReleaseID uuid.UUID            `json:"release_id"`
	ProjectID uuid.UUID            `json:"project_id"`
	Status    domain.ReleaseStatus `json:"status"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient, // уведомления не переживают рестарт
				MessageId:    msg.ID,
				Type:         string(msg.Type),
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

// PublishStepUpdated публикует событие об изменении шага.
// Потребители: watch hub каждого экземпляра API.
func (p *Publisher) PublishStepUpdated(ctx context.Context, step *domain.WorkflowStep) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeStepUpdated,
		Payload: StepUpdatedPayload{
			StepID:     step.ID,
			ReleaseID:  step.ReleaseID,
			StepNumber: step.StepNumber,
			Status:     step.Status,
		},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeEvents, RoutingKeyStepUpdated, msg)
}

// PublishReleaseUpdated публикует событие об изменении релиза.
func (p *Publisher) PublishReleaseUpdated(ctx context.Context, rel *domain.Release) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeReleaseUpdated,
		Payload: ReleaseUpdatedPayload{
			ReleaseID: rel.ID,
			ProjectID: rel.ProjectID,
			Status:    rel.Status,
		},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeEvents, RoutingKeyReleaseUpdated, msg)
}

// ReleaseIDOf извлекает ID релиза из события step.updated или release.updated.
func ReleaseIDOf(msg *Message) (uuid.UUID, error) {
	switch msg.Type {
	case MessageTypeStepUpdated:
		payload, err := ParsePayload[StepUpdatedPayload](msg)
		if err != nil {
			return uuid.Nil, err
		}
		return payload.ReleaseID, nil
	case MessageTypeReleaseUpdated:
		payload, err := ParsePayload[ReleaseUpdatedPayload](msg)
		if err != nil {
			return uuid.Nil, err
		}
		return payload.ReleaseID, nil
	default:
		return uuid.Nil, fmt.Errorf("unexpected message type %q", msg.Type)
	}
}
