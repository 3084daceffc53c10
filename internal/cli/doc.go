// Package cli реализует инструмент командной строки extraction worker.
//
// # Обзор
//
// CLI — клиентская утилита для extraction API.
// Работает через HTTP. Исключение — exec --local: сообщение выполняется
// в процессе CLI через route.Registry и worker.Execute.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API: одноразовое выполнение, проверка схемой,
// постановка заданий в очередь и чтение архива результатов.
//
//	client := cli.NewClient("http://localhost:8080")
//	result, err := client.Execute(ctx, msg, 4)
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Сообщения-результаты всегда печатаются как JSON.
// Данные идут в stdout, Success/Error в stderr.
//
// ## Commands
//
//   - exec: одноразовое выполнение сообщения
//   - validate, schema: схемы сообщения и конфигурации
//   - task publish: постановка в очередь, в том числе exit
//   - result list, result show: архив
//
// Фабрики команд принимают clientFn и outputFn, чтобы Client и Output
// создавались после парсинга PersistentFlags.
package cli
