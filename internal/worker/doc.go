// Package worker обрабатывает сообщения с ограниченной параллельностью.
//
// # Обзор
//
// Worker — единица исполнения системы извлечения данных. Он принимает
// сообщения (json-rpc, https, graphql вызовы), проверяет их схемой,
// ставит в очередь с ограниченной параллельностью, выполняет через Router
// и возвращает вызывающей стороне сообщение с results или error.
//
// # Ключевые компоненты
//
// ## Dispatcher
//
// FIFO-очередь: не больше Concurrency одновременных вызовов Router'а,
// остальные tasks ждут в backlog и стартуют в порядке Push.
//
//	d, err := worker.NewDispatcher(worker.DispatcherConfig{
//	    Concurrency: 10,
//	    Router:      registry,
//	    TaskTimeout: time.Minute,
//	})
//	result, err := d.Push(ctx, msg).Result()
//
// ## Pipeline
//
// validate → exit check → dispatch → tally → contain.
// Admit синхронно проверяет сообщение и ставит task в Dispatcher,
// Finish ждёт результат. Возвращает Outcome: сообщение с results,
// сообщение с error или Terminate для сигнала завершения.
//
// ## Contain
//
// Единственное место, где ошибка превращается в данные.
// Наружу Pipeline ошибки не пробрасывает.
//
// ## Worker
//
// Жизненный цикл Uninitialized → Configuring → Running → Terminated.
// New проверяет конфигурацию (ошибка фатальна), заполняет Endpoint Store
// и создаёт Dispatcher. Run читает Transport и вызывает Admit в порядке
// прихода сообщений, поэтому tasks стартуют в том же порядке. Ожидание
// результата и ответ идут в отдельной горутине.
//
//	w, err := worker.New(worker.Config{
//	    Worker: cfg,
//	    Router: registry,
//	    Store:  store,
//	    Logger: logger,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = w.Run(ctx, hostio.New(os.Stdin, os.Stdout))
//
// ## Execute
//
// One-shot режим: одно сообщение, свой Dispatcher, без Transport.
// Подставляет служебный commissioner и убирает его из результата.
//
// # Завершение
//
// Сигнал exit не завершает процесс из глубины Pipeline. Pipeline возвращает
// Outcome{Terminate: true}, Worker закрывает Dispatcher, перестаёт принимать
// сообщения и ждёт in-flight tasks не дольше drainTimeout. Сообщения,
// пришедшие после закрытия, возвращаются в источник (Requeue) или получают
// ответ с ErrDispatcherClosed.
//
// # Ошибки
//
// Пакет различает:
//   - Ошибки конфигурации — фатальны, Worker не создаётся
//   - Ошибки схемы сообщения — сообщение возвращается с error, Router не вызывается
//   - Ошибки Router'а (включая панику и таймаут) — сообщение возвращается с error
package worker
