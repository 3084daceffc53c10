// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ: поколения подключений и reconnect
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация заданий и результатов
//   - consumer.go   — подписка на очередь заданий, basic.cancel при остановке
//   - transport.go  — worker.Transport поверх consumer и publisher
//
// Сообщения передаются как JSON без обёртки. Связь задания и ответа —
// через AMQP-свойства CorrelationId и ReplyTo.
//
// Exchanges:
//   - extraction      — задания (task) и результаты (result)
//   - extraction.dlq  — dead letter queue
package mq
