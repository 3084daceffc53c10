// Package telemetry — логи и метрики воркера.
//
// Логгер настраивается один раз на бинарник (SetupLogger) и дальше
// передаётся явно. Для Router'а логгер задачи едет в context.Context.
//
// Метрики не глобальные: NewMetrics регистрирует набор в переданном
// Registerer, так что несколько воркеров в одном процессе не конфликтуют.
package telemetry
