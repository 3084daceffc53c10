package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// defaultTagPrefix — префикс consumer tag воркера.
const defaultTagPrefix = "extraction-worker"

// drainTimeout ограничивает ожидание доставок после basic.cancel.
const drainTimeout = 5 * time.Second

// Handler обрабатывает доставку и сам решает, когда вызвать Ack или Nack.
type Handler func(ctx context.Context, d *Delivery)

// Delivery — доставленное задание.
type Delivery struct {
	Raw amqp.Delivery
}

// Body возвращает тело сообщения.
func (d *Delivery) Body() []byte {
	return d.Raw.Body
}

// ReplyTo возвращает очередь для ответа (пусто — ответ в QueueResults).
func (d *Delivery) ReplyTo() string {
	return d.Raw.ReplyTo
}

// CorrelationID возвращает CorrelationId, а без него MessageId.
func (d *Delivery) CorrelationID() string {
	if d.Raw.CorrelationId != "" {
		return d.Raw.CorrelationId
	}
	return d.Raw.MessageId
}

// Redelivered — брокер уже отдавал это задание.
func (d *Delivery) Redelivered() bool {
	return d.Raw.Redelivered
}

// Ack подтверждает задание.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет задание: requeue=true возвращает его в очередь, false отправляет в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Requeue возвращает задание в очередь.
func (d *Delivery) Requeue() error {
	return d.Nack(true)
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — лимит неподтверждённых доставок (обычно равен concurrent).
	Prefetch int

	// TagPrefix — префикс consumer tag (default: extraction-worker).
	TagPrefix string
}

// Consumer подписывается на очередь заданий и переживает reconnect.
//
// При отмене ctx подписка снимается через basic.cancel, а доставки,
// успевшие прийти по prefetch, возвращаются в очередь.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	tag      string
	prefetch int
	handler  Handler
}

// NewConsumer создаёт Consumer с уникальным consumer tag.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.TagPrefix
	if prefix == "" {
		prefix = defaultTagPrefix
	}

	tag := consumerTag(prefix)
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue, "consumer_tag", tag),
		queue:    cfg.Queue,
		tag:      tag,
		prefetch: max(cfg.Prefetch, 1),
		handler:  cfg.Handler,
	}
}

// Tag возвращает consumer tag.
func (c *Consumer) Tag() string {
	return c.tag
}

// Run потребляет задания до отмены ctx или закрытия соединения.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		ch, changed := c.conn.Current()

		deliveries, err := c.subscribe(ch)
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
			if err := c.await(ctx, changed); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "prefetch", c.prefetch, "generation", c.conn.Generation())

		if c.forward(ctx, deliveries) {
			c.cancel(ch, deliveries)
			return ctx.Err()
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect")
		if err := c.await(ctx, changed); err != nil {
			return err
		}
	}
}

// subscribe настраивает prefetch и начинает потребление.
func (c *Consumer) subscribe(ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	if ch == nil || ch.IsClosed() {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, err
	}
	return ch.Consume(
		string(c.queue), // queue
		c.tag,           // consumer tag
		false,           // auto-ack (ack делает Handler)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
}

// await ждёт следующего подключения.
func (c *Consumer) await(ctx context.Context, changed <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.Done():
		return ErrClosed
	case <-changed:
		c.logger.Info("reconnected, resubscribing")
		return nil
	}
}

// forward передаёт доставки обработчику.
// Возвращает true, если остановка пришла через ctx.
func (c *Consumer) forward(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return true

		case raw, ok := <-deliveries:
			if !ok {
				return false
			}

			c.logger.Debug("received task",
				"message_id", raw.MessageId,
				"correlation_id", raw.CorrelationId,
				"redelivered", raw.Redelivered,
			)
			c.handler(ctx, &Delivery{Raw: raw})
		}
	}
}

// cancel снимает подписку и возвращает в очередь то, что уже пришло.
func (c *Consumer) cancel(ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	if err := ch.Cancel(c.tag, false); err != nil {
		// Канал закрыт: неподтверждённые доставки брокер вернёт сам.
		c.logger.Warn("failed to cancel consumer", "error", err)
		return
	}

	n := requeuePending(deliveries, drainTimeout)
	c.logger.Info("consumer cancelled", "requeued", n)
}

// requeuePending читает deliveries до закрытия или timeout
// и возвращает каждую доставку в очередь.
func requeuePending(deliveries <-chan amqp.Delivery, timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	n := 0
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return n
			}
			if err := d.Nack(false, true); err == nil {
				n++
			}
		case <-timer.C:
			return n
		}
	}
}

// consumerTag — уникальный tag, видимый в management UI.
func consumerTag(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
