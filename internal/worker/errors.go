package worker

import "errors"

// Ошибки воркера.
var (
	// ErrDispatcherClosed — Dispatcher больше не принимает tasks (идёт завершение).
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrRouterPanic — Router упал с паникой; паника перехвачена.
	ErrRouterPanic = errors.New("router panicked")

	// ErrTaskTimeout — вызов Router'а превысил таймаут task.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrEmptyResult — Router вернул пустой результат без ошибки.
	ErrEmptyResult = errors.New("router returned no result")

	// ErrNilMessage — в очередь передано пустое сообщение.
	ErrNilMessage = errors.New("message is nil")

	// ErrNoRouter — Router не передан.
	ErrNoRouter = errors.New("router is required")

	// ErrInvalidConcurrency — лимит параллельности меньше 1.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrWorkerStopped — воркер уже запускался или остановлен.
	ErrWorkerStopped = errors.New("worker stopped")

	// ErrExitNotAllowed — сигнал завершения в one-shot режиме.
	ErrExitNotAllowed = errors.New("exit messages are not allowed in one-shot execution")

	// ErrUnknown — ошибка без описания.
	ErrUnknown = errors.New("unknown error")
)
