// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (router, validator, publisher, archive, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (request id, recovery, logging, metrics)
//   - metrics.go         — Prometheus-гистограмма запросов по шаблону маршрута
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - execute_handler.go — one-shot выполнение сообщения
//   - schema_handler.go  — проверка документов и выдача схем
//   - task_handler.go    — постановка заданий в RabbitMQ
//   - result_handler.go  — чтение архива результатов
//
// Ошибки выполнения сообщения возвращаются как данные (поле error
// в сообщении, статус 200). HTTP-ошибки — только для некорректных запросов
// (400, 413, 422 с нарушениями схемы) и не сконфигурированных
// зависимостей (503).
package api
