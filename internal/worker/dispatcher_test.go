package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attestate/extraction-worker/internal/domain"
)

// echoRouter возвращает сообщение с results = method.
func echoRouter() Router {
	return RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		raw, _ := json.Marshal(msg.Method)
		msg.SetResults(raw)
		return msg, nil
	})
}

func testMessage(method string) *domain.Message {
	return &domain.Message{
		Version:      domain.Version,
		Type:         domain.KindJSONRPC,
		Commissioner: "test",
		Method:       method,
		Params:       []json.RawMessage{},
	}
}

func newTestDispatcher(t *testing.T, concurrency int, router Router) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherConfig{Concurrency: concurrency, Router: router})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestNewDispatcher_Invalid(t *testing.T) {
	if _, err := NewDispatcher(DispatcherConfig{Concurrency: 1}); !errors.Is(err, ErrNoRouter) {
		t.Errorf("expected ErrNoRouter, got %v", err)
	}
	if _, err := NewDispatcher(DispatcherConfig{Concurrency: 0, Router: echoRouter()}); !errors.Is(err, ErrInvalidConcurrency) {
		t.Errorf("expected ErrInvalidConcurrency, got %v", err)
	}
}

func TestDispatcher_Push_Success(t *testing.T) {
	d := newTestDispatcher(t, 2, echoRouter())

	msg := testMessage("eth_blockNumber")
	out, err := d.Push(context.Background(), msg).Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out.Results) != `"eth_blockNumber"` {
		t.Errorf("unexpected results %s", out.Results)
	}
	if msg.HasResults() {
		t.Error("router must not write into the pushed message")
	}
}

func TestDispatcher_ConcurrencyBound(t *testing.T) {
	const limit = 3
	const burst = 20

	var current, peak atomic.Int32
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		msg.SetResults(nil)
		return msg, nil
	})

	d := newTestDispatcher(t, limit, router)

	tasks := make([]*Task, 0, burst)
	for i := 0; i < burst; i++ {
		tasks = append(tasks, d.Push(context.Background(), testMessage("m")))
	}
	for _, task := range tasks {
		if _, err := task.Result(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency %d exceeds limit %d", got, limit)
	}
	if got := peak.Load(); got < 2 {
		t.Errorf("expected tasks to run in parallel, peak %d", got)
	}
	if d.InFlight() != 0 || d.Pending() != 0 {
		t.Errorf("expected empty dispatcher, in_flight=%d pending=%d", d.InFlight(), d.Pending())
	}
}

func TestDispatcher_FIFOWithSingleSlot(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		record("start " + msg.Method)
		if msg.Method == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
		record("end " + msg.Method)
		msg.SetResults(nil)
		return msg, nil
	})

	d := newTestDispatcher(t, 1, router)

	first := d.Push(context.Background(), testMessage("slow"))
	second := d.Push(context.Background(), testMessage("fast"))

	if _, err := second.Result(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := first.Result(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"start slow", "end slow", "start fast", "end fast"}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Fatalf("unexpected events %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestDispatcher_FailureStartsNext(t *testing.T) {
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		if msg.Method == "bad" {
			return nil, errors.New("no transport target")
		}
		msg.SetResults(nil)
		return msg, nil
	})

	d := newTestDispatcher(t, 1, router)

	bad := d.Push(context.Background(), testMessage("bad"))
	good := d.Push(context.Background(), testMessage("good"))

	if _, err := bad.Result(); err == nil || err.Error() != "no transport target" {
		t.Errorf("expected router error, got %v", err)
	}
	if _, err := good.Result(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_RouterPanic(t *testing.T) {
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		panic("boom")
	})

	d := newTestDispatcher(t, 1, router)

	_, err := d.Push(context.Background(), testMessage("m")).Result()
	if !errors.Is(err, ErrRouterPanic) {
		t.Fatalf("expected ErrRouterPanic, got %v", err)
	}

	// Слот освобождён.
	d2 := d.Push(context.Background(), testMessage("m"))
	select {
	case <-d2.Done():
	case <-time.After(time.Second):
		t.Fatal("slot was not released after panic")
	}
}

func TestDispatcher_EmptyResult(t *testing.T) {
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		return nil, nil
	})

	d := newTestDispatcher(t, 1, router)
	if _, err := d.Push(context.Background(), testMessage("m")).Result(); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
}

func TestDispatcher_TaskTimeout(t *testing.T) {
	release := make(chan struct{})
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		<-release
		return msg, nil
	})

	d, err := NewDispatcher(DispatcherConfig{
		Concurrency: 1,
		Router:      router,
		TaskTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	_, err = d.Push(context.Background(), testMessage("hang")).Result()
	if !errors.Is(err, ErrTaskTimeout) {
		t.Fatalf("expected ErrTaskTimeout, got %v", err)
	}

	// Router ещё не вернул управление: слот занят.
	if d.InFlight() != 1 {
		t.Errorf("expected slot to stay occupied, in_flight=%d", d.InFlight())
	}

	close(release)
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if d.InFlight() != 0 {
		t.Errorf("expected slot to be released, in_flight=%d", d.InFlight())
	}
}

func TestDispatcher_CancelledBeforeStart(t *testing.T) {
	release := make(chan struct{})
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		<-release
		msg.SetResults(nil)
		return msg, nil
	})

	d := newTestDispatcher(t, 1, router)

	first := d.Push(context.Background(), testMessage("first"))

	ctx, cancel := context.WithCancel(context.Background())
	second := d.Push(ctx, testMessage("second"))
	if d.Pending() != 1 {
		t.Fatalf("expected one pending task, got %d", d.Pending())
	}
	cancel()
	close(release)

	if _, err := first.Result(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := second.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDispatcher_Close(t *testing.T) {
	d := newTestDispatcher(t, 1, echoRouter())
	d.Close()

	if !d.Closed() {
		t.Error("expected dispatcher to be closed")
	}
	if _, err := d.Push(context.Background(), testMessage("m")).Result(); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Errorf("drain of empty dispatcher: %v", err)
	}
}

func TestDispatcher_PushNil(t *testing.T) {
	d := newTestDispatcher(t, 1, echoRouter())
	if _, err := d.Push(context.Background(), nil).Result(); !errors.Is(err, ErrNilMessage) {
		t.Errorf("expected ErrNilMessage, got %v", err)
	}
}

func TestTask_WaitContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		<-release
		return msg, nil
	})
	d := newTestDispatcher(t, 1, router)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := d.Push(context.Background(), testMessage("m")).Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
