package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/attestate/extraction-worker/internal/config"
	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/schema"
	"github.com/attestate/extraction-worker/internal/telemetry"
)

// State — состояние жизненного цикла воркера.
type State int32

const (
	StateUninitialized State = iota
	StateConfiguring
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Archive сохраняет отправленные результаты (опционально).
type Archive interface {
	Save(ctx context.Context, msg *domain.Message) error
}

// Worker принимает сообщения из Transport и обрабатывает их через Pipeline.
//
// Worker:
//   - Проверяет конфигурацию и заполняет Endpoint Store при создании
//   - Принимает сообщения строго по порядку, а результаты ждёт параллельно
//   - Отправляет непустой результат обратно через Inbound.Reply
//   - По сигналу exit перестаёт принимать сообщения и дожидается in-flight tasks
//
// Переходы состояний однонаправленные: из Terminated возврата нет.
type Worker struct {
	cfg        *config.Config
	store      *endpoint.Store
	dispatcher *Dispatcher
	pipeline   *Pipeline
	archive    Archive

	drainTimeout time.Duration

	state  atomic.Int32
	logger *slog.Logger
}

// Config — зависимости Worker.
type Config struct {
	// Worker — стартовая конфигурация (обязательно).
	Worker *config.Config

	// Router — исполнитель сообщений (обязательно).
	Router Router

	// Store заполняется из Worker.Endpoints. Если nil — создаётся новый.
	// Router, которому нужны endpoints, должен получить тот же Store.
	Store *endpoint.Store

	// Validator (опционально; если nil — schema.Default()).
	Validator *schema.Validator

	// Archive (опционально).
	Archive Archive

	// Metrics (опционально).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New проверяет конфигурацию и собирает Worker.
//
// Невалидная конфигурация — фатальная ошибка: Worker не создаётся.
func New(cfg Config) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithComponent(logger, "worker")

	w := &Worker{logger: logger}
	w.state.Store(int32(StateConfiguring))

	if err := config.Validate(cfg.Worker); err != nil {
		w.state.Store(int32(StateUninitialized))
		return nil, err
	}
	if cfg.Router == nil {
		w.state.Store(int32(StateUninitialized))
		return nil, ErrNoRouter
	}

	store := cfg.Store
	if store == nil {
		store = endpoint.NewStore()
	}
	if len(cfg.Worker.Endpoints) > 0 {
		if err := store.Populate(cfg.Worker.Endpoints); err != nil {
			w.state.Store(int32(StateUninitialized))
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Concurrency: cfg.Worker.Queue.Options.Concurrent,
		Router:      cfg.Router,
		TaskTimeout: cfg.Worker.TaskTimeout(),
		Metrics:     cfg.Metrics,
		Logger:      logger,
	})
	if err != nil {
		w.state.Store(int32(StateUninitialized))
		return nil, err
	}

	w.cfg = cfg.Worker
	w.store = store
	w.dispatcher = dispatcher
	w.pipeline = NewPipeline(dispatcher, cfg.Validator, NewTally(cfg.Metrics), logger)
	w.archive = cfg.Archive
	w.drainTimeout = cfg.Worker.DrainTimeout()

	logger.Info("starting as worker with queue options",
		"concurrent", cfg.Worker.Queue.Options.Concurrent,
		"task_timeout", cfg.Worker.TaskTimeout(),
		"drain_timeout", w.drainTimeout,
		"endpoints", store.Len(),
	)

	return w, nil
}

// State возвращает текущее состояние.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Dispatcher возвращает очередь воркера.
func (w *Worker) Dispatcher() *Dispatcher {
	return w.dispatcher
}

// Store возвращает Endpoint Store.
func (w *Worker) Store() *endpoint.Store {
	return w.store
}

// Tally возвращает счётчики исходов.
func (w *Worker) Tally() TallySnapshot {
	return w.pipeline.Tally().Snapshot()
}

// Run принимает сообщения из t, пока не придёт сигнал exit,
// не закроется источник или не будет отменён ctx.
//
// Завершение упорядоченное: приём прекращается, Dispatcher закрывается,
// in-flight tasks получают drainTimeout на завершение, после чего
// их контекст отменяется. Run возвращает nil при любом упорядоченном завершении.
func (w *Worker) Run(ctx context.Context, t Transport) error {
	if !w.state.CompareAndSwap(int32(StateConfiguring), int32(StateRunning)) {
		return fmt.Errorf("%w: state is %s", ErrWorkerStopped, w.State())
	}

	recvCtx, stopReceiving := context.WithCancel(ctx)
	defer stopReceiving()

	// Tasks переживают отмену ctx до истечения drainTimeout.
	taskCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()

	inbound, err := t.Receive(recvCtx)
	if err != nil {
		w.state.Store(int32(StateTerminated))
		w.dispatcher.Close()
		return fmt.Errorf("receive: %w", err)
	}

	w.logger.Info("worker started", "concurrency", w.dispatcher.Limit())

	var (
		handlers sync.WaitGroup
		reason   string
	)

loop:
	for {
		select {
		case <-ctx.Done():
			reason = "context cancelled"
			break loop

		case in, ok := <-inbound:
			if !ok {
				reason = "inbound closed"
				break loop
			}

			// Приём синхронный: порядок Push совпадает с порядком поступления,
			// а exit обрабатывается после всех сообщений, пришедших до него.
			adm := w.pipeline.AdmitJSON(taskCtx, in.Body)
			if adm.Terminate() {
				w.ack(in)
				reason = "exit signal"
				break loop
			}

			handlers.Add(1)
			go func() {
				defer handlers.Done()
				w.respond(taskCtx, in, w.pipeline.Finish(adm))
			}()
		}
	}

	stopReceiving()
	w.state.Store(int32(StateTerminated))
	w.dispatcher.Close()

	w.logger.Info("stopping worker...",
		"reason", reason,
		"in_flight", w.dispatcher.InFlight(),
		"pending", w.dispatcher.Pending(),
	)

	w.drain(&handlers, abandon)

	tally := w.Tally()
	w.logger.Info("worker stopped",
		"succeeded", tally.Succeeded,
		"failed", tally.Failed,
		"rejected", tally.Rejected,
	)
	return nil
}

// drain ждёт обработчики не дольше drainTimeout, затем отменяет tasks.
func (w *Worker) drain(handlers *sync.WaitGroup, abandon context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		handlers.Wait()
		close(done)
	}()

	timer := time.NewTimer(w.drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-timer.C:
	}

	w.logger.Warn("drain timeout exceeded, abandoning in-flight tasks",
		"timeout", w.drainTimeout,
		"in_flight", w.dispatcher.InFlight(),
	)
	abandon()
	<-done
}

// respond отправляет результат сообщения и подтверждает его.
// Сообщение, не принятое закрытым Dispatcher'ом, возвращается в очередь.
func (w *Worker) respond(ctx context.Context, in Inbound, outcome Outcome) {
	if errors.Is(outcome.Err, ErrDispatcherClosed) && in.Requeue != nil {
		if err := in.Requeue(); err != nil {
			w.logger.Error("failed to requeue message", "error", err)
		}
		return
	}

	if outcome.Message == nil {
		w.logger.Warn("result came back empty and won't be sent back to the host")
		w.ack(in)
		return
	}

	// Ответ отправляется даже во время drain.
	replyCtx := context.WithoutCancel(ctx)

	if in.Reply != nil {
		if err := in.Reply(replyCtx, outcome.Message); err != nil {
			w.logger.Error("failed to send result", "error", err)
		}
	}

	if w.archive != nil {
		if err := w.archive.Save(replyCtx, outcome.Message); err != nil {
			w.logger.Error("failed to archive result", "error", err)
		}
	}

	w.ack(in)
}

func (w *Worker) ack(in Inbound) {
	if in.Ack == nil {
		return
	}
	if err := in.Ack(); err != nil {
		w.logger.Error("failed to ack message", "error", err)
	}
}
