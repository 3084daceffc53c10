package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/telemetry"
)

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	// Concurrency — максимум одновременных вызовов Router'а (>= 1).
	Concurrency int

	// Router — исполнитель tasks.
	Router Router

	// TaskTimeout — таймаут одного вызова Router'а (0 — без таймаута).
	TaskTimeout time.Duration

	// Metrics — опционально.
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// Dispatcher — очередь tasks с ограниченной параллельностью.
//
// Tasks стартуют строго в порядке Push. Одновременно выполняется
// не больше Concurrency вызовов Router'а, остальные ждут в backlog.
// Слот освобождается только когда Router действительно вернул управление,
// даже если вызывающая сторона уже получила ErrTaskTimeout.
type Dispatcher struct {
	router  Router
	limit   int
	sem     *semaphore.Weighted
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	backlog  []*Task
	inFlight int
	closed   bool

	pending sync.WaitGroup
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Router == nil {
		return nil, ErrNoRouter
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, cfg.Concurrency)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		router:  cfg.Router,
		limit:   cfg.Concurrency,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		timeout: cfg.TaskTimeout,
		metrics: cfg.Metrics,
		logger:  telemetry.WithComponent(logger, "dispatcher"),
	}, nil
}

// Task — одна поставленная в очередь единица работы.
type Task struct {
	// ID — идентификатор для логов.
	ID string

	ctx  context.Context
	msg  *domain.Message
	done chan struct{}

	result *domain.Message
	err    error
}

// Done закрывается, когда task завершён.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result блокируется до завершения task.
func (t *Task) Result() (*domain.Message, error) {
	<-t.done
	return t.result, t.err
}

// Wait ждёт завершения task или отмены ctx.
func (t *Task) Wait(ctx context.Context) (*domain.Message, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Task) resolve(result *domain.Message, err error) {
	t.result, t.err = result, err
	close(t.done)
}

// Push ставит сообщение в очередь и сразу возвращает Task.
//
// Router получает копию msg. Отмена ctx снимает task из очереди
// (если он ещё не начал выполняться) или отменяет вызов Router'а.
// После Close каждый Push завершается с ErrDispatcherClosed.
func (d *Dispatcher) Push(ctx context.Context, msg *domain.Message) *Task {
	task := &Task{
		ID:   uuid.NewString(),
		ctx:  ctx,
		msg:  msg.Clone(),
		done: make(chan struct{}),
	}

	if msg == nil {
		task.resolve(nil, ErrNilMessage)
		return task
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		task.resolve(nil, ErrDispatcherClosed)
		return task
	}
	d.pending.Add(1)
	d.backlog = append(d.backlog, task)
	d.mu.Unlock()

	d.schedule()
	return task
}

// schedule запускает tasks из головы backlog, пока есть свободные слоты.
// Все TryAcquire выполняются под d.mu, поэтому порядок старта совпадает с порядком Push.
func (d *Dispatcher) schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.backlog) > 0 && d.sem.TryAcquire(1) {
		task := d.backlog[0]
		d.backlog[0] = nil
		d.backlog = d.backlog[1:]
		d.inFlight++
		go d.run(task)
	}

	d.metrics.SetInFlight(d.inFlight)
	d.metrics.SetBacklog(len(d.backlog))
}

func (d *Dispatcher) run(task *Task) {
	defer func() {
		d.sem.Release(1)
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
		d.pending.Done()
		d.schedule()
	}()

	logger := telemetry.WithTask(d.logger, task.ID, string(task.msg.Type))

	if err := task.ctx.Err(); err != nil {
		logger.Debug("task cancelled before start", "error", err)
		task.resolve(nil, err)
		return
	}

	ctx := task.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	ctx = telemetry.WithLogger(ctx, logger)

	type routed struct {
		msg *domain.Message
		err error
	}
	out := make(chan routed, 1)
	start := time.Now()

	go func() {
		msg, err := d.invoke(ctx, logger, task.msg)
		out <- routed{msg: msg, err: err}
	}()

	select {
	case r := <-out:
		d.metrics.ObserveDuration(string(task.msg.Type), time.Since(start))
		task.resolve(r.msg, r.err)

	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) && task.ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrTaskTimeout, d.timeout)
		}
		logger.Warn("task abandoned, waiting for router to return", "error", err)
		task.resolve(nil, err)

		// Слот занят, пока Router не вернул управление.
		<-out
		d.metrics.ObserveDuration(string(task.msg.Type), time.Since(start))
	}
}

// invoke вызывает Router и перехватывает панику.
func (d *Dispatcher) invoke(ctx context.Context, logger *slog.Logger, msg *domain.Message) (result *domain.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("router panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result, err = nil, fmt.Errorf("%w: %v", ErrRouterPanic, r)
		}
	}()

	result, err = d.router.Route(ctx, msg)
	if err == nil && result == nil {
		err = ErrEmptyResult
	}
	return result, err
}

// Close перестаёт принимать новые tasks. Уже поставленные tasks выполняются.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Closed возвращает true после Close.
func (d *Dispatcher) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Drain ждёт завершения всех поставленных tasks или отмены ctx.
// Вызывается после Close.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Limit возвращает лимит параллельности.
func (d *Dispatcher) Limit() int {
	return d.limit
}

// InFlight возвращает число выполняемых tasks.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Pending возвращает число tasks, ждущих слота.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backlog)
}
