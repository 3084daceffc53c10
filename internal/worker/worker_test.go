package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/attestate/extraction-worker/internal/config"
	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/route"
)

// --- fakes ---

// chanTransport отдаёт заранее подготовленные сообщения и собирает ответы.
type chanTransport struct {
	in chan Inbound

	mu      sync.Mutex
	replies []*domain.Message
	acks    int
}

func newChanTransport() *chanTransport {
	return &chanTransport{in: make(chan Inbound, 64)}
}

func (c *chanTransport) Receive(ctx context.Context) (<-chan Inbound, error) {
	return c.in, nil
}

func (c *chanTransport) send(body string) {
	c.in <- Inbound{
		Body: []byte(body),
		Reply: func(ctx context.Context, msg *domain.Message) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.replies = append(c.replies, msg)
			return nil
		},
		Ack: func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.acks++
			return nil
		},
	}
}

func (c *chanTransport) Replies() []*domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Message(nil), c.replies...)
}

type memArchive struct {
	mu    sync.Mutex
	saved []*domain.Message
}

func (a *memArchive) Save(ctx context.Context, msg *domain.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, msg)
	return nil
}

func testConfig(concurrency int) *config.Config {
	return &config.Config{Queue: config.QueueConfig{Options: config.QueueOptions{Concurrent: concurrency}}}
}

func runWorker(t *testing.T, w *Worker, tr Transport) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), tr) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

// --- New ---

func TestNew_InvalidConfig(t *testing.T) {
	cases := []*config.Config{
		nil,
		testConfig(0),
		testConfig(-1),
	}
	for _, cfg := range cases {
		_, err := New(Config{Worker: cfg, Router: echoRouter()})
		if !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestNew_NonIntegerConcurrencyAbortsStartup(t *testing.T) {
	_, err := config.Parse([]byte(`{"queue":{"options":{"concurrent":2.5}}}`))
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNew_NoRouter(t *testing.T) {
	if _, err := New(Config{Worker: testConfig(1)}); !errors.Is(err, ErrNoRouter) {
		t.Errorf("expected ErrNoRouter, got %v", err)
	}
}

func TestNew_PopulatesEndpointStore(t *testing.T) {
	cfg := testConfig(2)
	cfg.Endpoints = []endpoint.Definition{
		{Name: "mainnet", URL: "https://mainnet.example"},
	}
	store := endpoint.NewStore()

	w, err := New(Config{Worker: cfg, Router: echoRouter(), Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.State() != StateConfiguring {
		t.Errorf("expected configuring, got %s", w.State())
	}
	if w.Store() != store || !store.Populated() || store.Len() != 1 {
		t.Errorf("endpoint store not populated")
	}
	if w.Dispatcher().Limit() != 2 {
		t.Errorf("expected limit 2, got %d", w.Dispatcher().Limit())
	}

	// Повторное заполнение того же Store — ошибка.
	if _, err := New(Config{Worker: cfg, Router: echoRouter(), Store: store}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected second population to fail, got %v", err)
	}
}

// --- Run ---

func TestRun_RepliesAndTerminates(t *testing.T) {
	archive := &memArchive{}
	w, err := New(Config{Worker: testConfig(2), Router: echoRouter(), Archive: archive})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr := newChanTransport()
	done := runWorker(t, w, tr)

	tr.send(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"eth_chainId","params":[]}`)
	tr.send(`{"hello":"world"}`)

	deadline := time.Now().Add(2 * time.Second)
	for len(tr.Replies()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	tr.send(`{"version":"0.0.1","type":"exit"}`)
	waitRun(t, done)

	if w.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", w.State())
	}

	replies := tr.Replies()
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}

	var ok, failed int
	for _, r := range replies {
		if r.Failed() {
			failed++
		} else if r.HasResults() {
			ok++
		}
	}
	if ok != 1 || failed != 1 {
		t.Errorf("expected one success and one failure, got ok=%d failed=%d", ok, failed)
	}

	tally := w.Tally()
	if tally.Succeeded != 1 || tally.Rejected != 1 || tally.Failed != 0 {
		t.Errorf("unexpected tally %+v", tally)
	}
	if len(archive.saved) != 2 {
		t.Errorf("expected 2 archived results, got %d", len(archive.saved))
	}
	if tr.acks != 3 {
		t.Errorf("expected 3 acks, got %d", tr.acks)
	}
}

func TestRun_DrainsInFlightOnExit(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		close(started)
		<-release
		msg.SetResults(json.RawMessage(`"late"`))
		return msg, nil
	})

	w, err := New(Config{Worker: testConfig(1), Router: router})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr := newChanTransport()
	done := runWorker(t, w, tr)

	tr.send(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"slow","params":[]}`)
	<-started
	tr.send(`{"version":"0.0.1","type":"exit"}`)

	select {
	case <-done:
		t.Fatal("worker stopped before in-flight task finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitRun(t, done)

	replies := tr.Replies()
	if len(replies) != 1 || string(replies[0].Results) != `"late"` {
		t.Errorf("expected in-flight result to be delivered, got %+v", replies)
	}
}

func TestRun_DrainTimeoutAbandonsTasks(t *testing.T) {
	started := make(chan struct{})
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	cfg := testConfig(1)
	cfg.Queue.Options.DrainTimeout = 20

	w, err := New(Config{Worker: cfg, Router: router})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr := newChanTransport()
	done := runWorker(t, w, tr)

	tr.send(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"hang","params":[]}`)
	<-started
	tr.send(`{"version":"0.0.1","type":"exit"}`)

	waitRun(t, done)

	replies := tr.Replies()
	if len(replies) != 1 || !replies[0].Failed() {
		t.Errorf("expected abandoned task to be answered with error, got %+v", replies)
	}
}

func TestRun_InboundClosed(t *testing.T) {
	w, err := New(Config{Worker: testConfig(1), Router: echoRouter()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr := newChanTransport()
	done := runWorker(t, w, tr)

	tr.send(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"m","params":[]}`)
	close(tr.in)

	waitRun(t, done)

	if len(tr.Replies()) != 1 {
		t.Errorf("expected reply before shutdown, got %d", len(tr.Replies()))
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	w, err := New(Config{Worker: testConfig(1), Router: echoRouter()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr := newChanTransport()
	close(tr.in)
	waitRun(t, runWorker(t, w, tr))

	if err := w.Run(context.Background(), newChanTransport()); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped, got %v", err)
	}
}

func TestRespond_RequeueAfterClose(t *testing.T) {
	w, err := New(Config{Worker: testConfig(1), Router: echoRouter()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Dispatcher().Close()

	var requeued, replied bool
	in := Inbound{
		Body: []byte(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"m","params":[]}`),
		Reply: func(ctx context.Context, msg *domain.Message) error {
			replied = true
			return nil
		},
		Requeue: func() error {
			requeued = true
			return nil
		},
	}
	adm := w.pipeline.AdmitJSON(context.Background(), in.Body)
	w.respond(context.Background(), in, w.pipeline.Finish(adm))

	if !requeued || replied {
		t.Errorf("expected requeue without reply, requeued=%v replied=%v", requeued, replied)
	}
}

func TestRun_StartsTasksInArrivalOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		mu.Lock()
		order = append(order, msg.Method)
		mu.Unlock()
		msg.SetResults(json.RawMessage(`true`))
		return msg, nil
	})

	w, err := New(Config{Worker: testConfig(1), Router: router})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr := newChanTransport()
	var want []string
	for i := range 30 {
		method := fmt.Sprintf("m%02d", i)
		want = append(want, method)
		tr.send(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"` + method + `","params":[]}`)
	}
	tr.send(`{"version":"0.0.1","type":"exit"}`)

	waitRun(t, runWorker(t, w, tr))

	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("expected %d tasks, got %d: %v", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("tasks started out of arrival order: %v", order)
		}
	}
	if n := len(tr.Replies()); n != len(want) {
		t.Errorf("expected %d replies, got %d", len(want), n)
	}
}

func TestRun_TaskBeforeExitIsAnswered(t *testing.T) {
	for round := range 50 {
		w, err := New(Config{Worker: testConfig(2), Router: echoRouter()})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		tr := newChanTransport()
		tr.send(`{"version":"0.0.1","type":"json-rpc","commissioner":"c","method":"eth_chainId","params":[]}`)
		tr.send(`{"version":"0.0.1","type":"exit"}`)

		waitRun(t, runWorker(t, w, tr))

		replies := tr.Replies()
		if len(replies) != 1 || !replies[0].HasResults() {
			t.Fatalf("round %d: task received before exit must be answered with results, got %+v", round, replies)
		}
	}
}

func TestState_String(t *testing.T) {
	if StateRunning.String() != "running" || State(42).String() != "state(42)" {
		t.Error("unexpected state names")
	}
}

// --- Execute ---

func TestExecute_NoTransportTarget(t *testing.T) {
	msg := &domain.Message{
		Version: domain.Version,
		Type:    domain.KindJSONRPC,
		Method:  "eth_getTransactionReceipt",
		Params:  []json.RawMessage{json.RawMessage(`"0xed14c3386aea0c5b39ffea466997ff13606eaedf03fe7f431326531f35809d1d"`)},
	}

	out := Execute(context.Background(), route.NewRegistry(nil, nil), msg, 1)

	if !out.Failed() || out.HasResults() {
		t.Fatalf("expected error only, got %+v", out)
	}
	if out.Error != route.ErrMissingURL.Error() {
		t.Errorf("unexpected error %q", out.Error)
	}
	assertNoCommissioner(t, out)
	if msg.Commissioner != "" || msg.Failed() {
		t.Error("Execute must not modify the caller's message")
	}
}

func TestExecute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID any `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"status": "0x1"}})
	}))
	defer server.Close()

	msg := &domain.Message{
		Version: domain.Version,
		Type:    domain.KindJSONRPC,
		Method:  "eth_getTransactionReceipt",
		Params:  []json.RawMessage{json.RawMessage(`"0xed14c3386aea0c5b39ffea466997ff13606eaedf03fe7f431326531f35809d1d"`)},
		Options: &domain.Options{URL: server.URL},
	}

	out := Execute(context.Background(), route.NewRegistry(nil, nil), msg, 0)

	if out.Failed() || !out.HasResults() {
		t.Fatalf("expected results only, got %+v", out)
	}
	assertNoCommissioner(t, out)
}

func TestExecute_SchemaFailure(t *testing.T) {
	msg := &domain.Message{Extra: map[string]json.RawMessage{"hello": json.RawMessage(`"world"`)}}

	out := Execute(context.Background(), echoRouter(), msg, 1)
	if !out.Failed() {
		t.Fatal("expected validation error")
	}
	assertNoCommissioner(t, out)
}

func TestExecute_ExitIsNotAllowed(t *testing.T) {
	out := Execute(context.Background(), echoRouter(), &domain.Message{Version: domain.Version, Type: domain.KindExit}, 1)
	if out.Error != ErrExitNotAllowed.Error() {
		t.Errorf("expected exit error, got %+v", out)
	}
	assertNoCommissioner(t, out)
}

func TestExecute_KeepsParamsVerbatim(t *testing.T) {
	msg, err := domain.ParseMessage([]byte(`{"version":"0.0.1","type":"json-rpc","method":"eth_getBalance","params":[12345678901234567891],"options":{"url":"http://localhost:8545","retries":2}}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	router := RouterFunc(func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
		return nil, errors.New("unreachable")
	})
	out := Execute(context.Background(), router, msg, 1)

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"params":[12345678901234567891]`) {
		t.Errorf("params lost precision: %s", data)
	}
	if !strings.Contains(string(data), `"retries":2`) {
		t.Errorf("unknown option dropped: %s", data)
	}
	if out.Error != "unreachable" {
		t.Errorf("expected router error, got %q", out.Error)
	}
}

func TestExecute_MalformedExitReportsSchemaError(t *testing.T) {
	out := Execute(context.Background(), echoRouter(), &domain.Message{Type: domain.KindExit}, 1)
	if !out.Failed() || out.Error == ErrExitNotAllowed.Error() {
		t.Fatalf("expected schema error, got %+v", out)
	}
	if !strings.Contains(out.Error, "ValidationError") {
		t.Errorf("expected validation error text, got %q", out.Error)
	}
}

func TestExecute_NilRouter(t *testing.T) {
	out := Execute(context.Background(), nil, testMessage("m"), 1)
	if out.Error != ErrNoRouter.Error() {
		t.Errorf("expected ErrNoRouter, got %+v", out)
	}
	assertNoCommissioner(t, out)
}

func assertNoCommissioner(t *testing.T, msg *domain.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["commissioner"]; ok {
		t.Errorf("commissioner leaked into result: %s", data)
	}
}
