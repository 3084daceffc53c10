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
	ExchangeExtraction Exchange = "extraction"
	ExchangeDLQ        Exchange = "extraction.dlq"
)

// Queues — имена очередей.
const (
	QueueTasks   Queue = "extraction.tasks"
	QueueResults Queue = "extraction.results"
	QueueDLQ     Queue = "extraction.dlq.tasks"
)

// Routing keys.
const (
	RoutingKeyTask   RoutingKey = "task"
	RoutingKeyResult RoutingKey = "result"
	RoutingKeyDLQ    RoutingKey = "tasks"
)

// ExchangeSpec — объявление обменника.
type ExchangeSpec struct {
	Name Exchange
	Kind string
}

// QueueSpec — объявление очереди.
type QueueSpec struct {
	Name Queue
	Args amqp.Table
}

// BindingSpec — привязка очереди к обменнику.
type BindingSpec struct {
	Queue      Queue
	RoutingKey RoutingKey
	Exchange   Exchange
}

// Topology — полный набор объявлений.
type Topology struct {
	Exchanges []ExchangeSpec
	Queues    []QueueSpec
	Bindings  []BindingSpec
}

// DefaultTopology возвращает топологию воркера.
//
//	extraction (direct)
//	├── extraction.tasks   [routing: task]    Consumer: Worker, DLQ: extraction.dlq.tasks
//	└── extraction.results [routing: result]  Consumer: стратегии без reply-to
//
//	extraction.dlq (direct)
//	└── extraction.dlq.tasks [routing: tasks] Manual processing
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []ExchangeSpec{
			{ExchangeExtraction, amqp.ExchangeDirect},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		Queues: []QueueSpec{
			// Сообщения, которые не удалось даже вернуть в очередь, уходят в DLQ.
			{QueueTasks, amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQ),
			}},
			{QueueResults, nil},
			{QueueDLQ, nil},
		},
		Bindings: []BindingSpec{
			{QueueTasks, RoutingKeyTask, ExchangeExtraction},
			{QueueResults, RoutingKeyResult, ExchangeExtraction},
			{QueueDLQ, RoutingKeyDLQ, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return DefaultTopology().Declare(ch)
	})
}

// Declare объявляет топологию на канале. Операции идемпотентны.
func (t Topology) Declare(ch *amqp.Channel) error {
	for _, ex := range t.Exchanges {
		err := ch.ExchangeDeclare(
			string(ex.Name), // name
			ex.Kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
	}

	for _, q := range t.Queues {
		_, err := ch.QueueDeclare(
			string(q.Name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.Args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}
	}

	for _, b := range t.Bindings {
		err := ch.QueueBind(
			string(b.Queue),      // queue name
			string(b.RoutingKey), // routing key
			string(b.Exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.Queue, b.Exchange, err)
		}
	}

	return nil
}
