package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/attestate/extraction-worker/internal/domain"
)

// MessageType — значение AMQP-свойства type.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTask   MessageType = "extraction.task"
	MessageTypeResult MessageType = "extraction.result"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует готовое сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg amqp.Publishing) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			msg,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageId,
			"correlation_id", msg.CorrelationId,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishTask ставит сообщение в очередь заданий.
// Возвращает correlation id, с которым придёт ответ.
// replyTo — очередь для ответа (пусто — ответ уйдёт в QueueResults).
func (p *Publisher) PublishTask(ctx context.Context, msg *domain.Message, replyTo string) (string, error) {
	pub, err := taskPublishing(msg, replyTo)
	if err != nil {
		return "", err
	}
	if err := p.Publish(ctx, ExchangeExtraction, RoutingKeyTask, pub); err != nil {
		return "", err
	}
	return pub.CorrelationId, nil
}

// PublishResult отправляет результат задания.
//
// Если у задания был reply-to, ответ уходит напрямую в эту очередь
// через default exchange. Иначе — в QueueResults.
func (p *Publisher) PublishResult(ctx context.Context, replyTo, correlationID string, msg *domain.Message) error {
	pub, err := resultPublishing(msg, correlationID)
	if err != nil {
		return err
	}

	if replyTo != "" {
		return p.Publish(ctx, "", RoutingKey(replyTo), pub)
	}
	return p.Publish(ctx, ExchangeExtraction, RoutingKeyResult, pub)
}

func taskPublishing(msg *domain.Message, replyTo string) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	id := uuid.NewString()
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // задание переживёт рестарт RabbitMQ
		MessageId:     id,
		CorrelationId: id,
		ReplyTo:       replyTo,
		Type:          string(MessageTypeTask),
		Timestamp:     time.Now(),
		Body:          body,
	}, nil
}

func resultPublishing(msg *domain.Message, correlationID string) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: correlationID,
		Type:          string(MessageTypeResult),
		Timestamp:     time.Now(),
		Body:          body,
	}, nil
}
