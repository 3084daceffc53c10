package mq

import (
	"context"
	"errors"
	"log/slog"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/worker"
)

// Transport — worker.Transport поверх RabbitMQ.
//
// Задания читаются из QueueTasks, ответы публикуются в reply-to задания
// или в QueueResults. Задание подтверждается после отправки ответа;
// задание, пришедшее во время завершения воркера, возвращается в очередь.
type Transport struct {
	conn      *Connection
	publisher *Publisher
	logger    *slog.Logger
	queue     Queue
	prefetch  int
}

// TransportConfig — конфигурация Transport.
type TransportConfig struct {
	// Queue — очередь заданий (default: QueueTasks).
	Queue Queue

	// Prefetch — обычно равен лимиту параллельности воркера.
	Prefetch int
}

// NewTransport создаёт Transport.
func NewTransport(conn *Connection, logger *slog.Logger, cfg TransportConfig) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = QueueTasks
	}

	return &Transport{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		logger:    logger,
		queue:     queue,
		prefetch:  cfg.Prefetch,
	}
}

// Receive запускает consumer. Канал закрывается после отмены ctx.
func (t *Transport) Receive(ctx context.Context) (<-chan worker.Inbound, error) {
	out := make(chan worker.Inbound)

	consumer := NewConsumer(t.conn, t.logger, ConsumerConfig{
		Queue:    t.queue,
		Prefetch: t.prefetch,
		Handler: func(ctx context.Context, d *Delivery) {
			select {
			case out <- t.inbound(d):
			case <-ctx.Done():
				if err := d.Requeue(); err != nil {
					t.logger.Warn("failed to requeue delivery", "error", err)
				}
			}
		},
	})

	go func() {
		defer close(out)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error("task consumer error", "error", err)
		}
	}()

	return out, nil
}

// inbound превращает доставку в сообщение для воркера.
func (t *Transport) inbound(d *Delivery) worker.Inbound {
	replyTo, correlationID := d.ReplyTo(), d.CorrelationID()

	return worker.Inbound{
		Body: d.Body(),
		Reply: func(ctx context.Context, msg *domain.Message) error {
			return t.publisher.PublishResult(ctx, replyTo, correlationID, msg)
		},
		Ack:     d.Ack,
		Requeue: d.Requeue,
	}
}
