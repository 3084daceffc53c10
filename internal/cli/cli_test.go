package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// fakeAPI записывает последний запрос и отвечает заданным телом.
type fakeAPI struct {
	status int
	body   string

	method string
	path   string
	query  string
	sent   []byte
}

func (f *fakeAPI) start(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.method = r.Method
		f.path = r.URL.Path
		f.query = r.URL.RawQuery
		f.sent, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		io.WriteString(w, f.body)
	}))
	t.Cleanup(server.Close)
	return server
}

func runCmd(t *testing.T, newCmd func(func() *Client, func() *Output) *cobra.Command, baseURL string, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(baseURL) }
	outputFn := func() *Output { return NewOutputTo(false, &stdout, &stderr) }

	if args == nil {
		args = []string{} // nil заставит cobra читать os.Args
	}

	cmd := newCmd(clientFn, outputFn)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// --- Client ---

func TestClient_Execute(t *testing.T) {
	api := &fakeAPI{body: `{"data":{"version":"0.0.1","type":"json-rpc","results":"0x1"}}`}
	server := api.start(t)

	result, err := NewClient(server.URL).Execute(context.Background(), json.RawMessage(`{"type":"json-rpc"}`), 3)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if api.method != http.MethodPost || api.path != "/api/v1/execute" || api.query != "concurrency=3" {
		t.Errorf("unexpected request %s %s?%s", api.method, api.path, api.query)
	}
	if string(api.sent) != `{"type":"json-rpc"}` {
		t.Errorf("unexpected request body %s", api.sent)
	}
	if !strings.Contains(string(result), `"results":"0x1"`) {
		t.Errorf("unexpected result %s", result)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	api := &fakeAPI{
		status: http.StatusServiceUnavailable,
		body:   `{"error":{"code":"UNAVAILABLE","message":"message queue is not configured"}}`,
	}
	server := api.start(t)

	_, err := NewClient(server.URL).PublishTask(context.Background(), json.RawMessage(`{}`), "")
	if err == nil || err.Error() != "UNAVAILABLE: message queue is not configured" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestClient_ValidationFailed(t *testing.T) {
	api := &fakeAPI{
		status: http.StatusUnprocessableEntity,
		body:   `{"error":{"code":"VALIDATION_FAILED","message":"document does not conform to message","violations":[{"location":"","message":"missing version"},{"location":"/params","message":"got string, want array"}]}}`,
	}
	server := api.start(t)

	_, err := NewClient(server.URL).PublishTask(context.Background(), json.RawMessage(`{}`), "")
	want := "VALIDATION_FAILED: document does not conform to message (/: missing version; /params: got string, want array)"
	if err == nil || err.Error() != want {
		t.Errorf("unexpected error %v", err)
	}
}

func TestClient_APIErrorType(t *testing.T) {
	api := &fakeAPI{
		status: http.StatusNotFound,
		body:   `{"error":{"code":"NOT_FOUND","message":"result not found"}}`,
	}
	server := api.start(t)

	_, err := NewClient(server.URL + "/").GetResult(context.Background(), "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if api.path != "/api/v1/results/missing" {
		t.Errorf("trailing slash in base URL must be trimmed, got path %q", api.path)
	}
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	api := &fakeAPI{status: http.StatusBadGateway, body: `oops`}
	server := api.start(t)

	_, err := NewClient(server.URL).GetSchema(context.Background(), "message")
	if err == nil || err.Error() != "API error: HTTP 502" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestClient_ListResults(t *testing.T) {
	api := &fakeAPI{body: `{"data":[{"id":"a","type":"https"},{"id":"b","type":"json-rpc"}],"total":2}`}
	server := api.start(t)

	results, err := NewClient(server.URL).ListResults(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if api.query != "limit=2" {
		t.Errorf("unexpected query %q", api.query)
	}
	if len(results) != 2 || results[1].ID != "b" {
		t.Errorf("unexpected results %+v", results)
	}
}

// --- Commands ---

func TestExecCmd_PrintsMessageAndError(t *testing.T) {
	api := &fakeAPI{body: `{"data":{"type":"https","error":"Error: connect ECONNREFUSED"}}`}
	server := api.start(t)

	stdout, stderr, err := runCmd(t, NewExecCmd, server.URL, `{"type":"https"}`, "-")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if string(api.sent) != `{"type":"https"}` {
		t.Errorf("stdin not forwarded: %s", api.sent)
	}
	if !strings.Contains(stdout, `"error": "Error: connect ECONNREFUSED"`) {
		t.Errorf("unexpected stdout %s", stdout)
	}
	if !strings.Contains(stderr, "Error: Error: connect ECONNREFUSED") {
		t.Errorf("unexpected stderr %s", stderr)
	}
}

func TestExecCmd_Local(t *testing.T) {
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID any `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x1"})
	}))
	defer rpc.Close()

	msg := `{"version":"0.0.1","type":"json-rpc","method":"eth_getBalance","params":["0x0","latest"],"options":{"url":"` + rpc.URL + `"}}`

	stdout, stderr, err := runCmd(t, NewExecCmd, "http://127.0.0.1:0", "", "--local", "--data", msg)
	if err != nil {
		t.Fatalf("exec --local: %v", err)
	}
	if !strings.Contains(stdout, `"results": "0x1"`) {
		t.Errorf("unexpected stdout %s", stdout)
	}
	if strings.Contains(stdout, "commissioner") {
		t.Errorf("commissioner leaked: %s", stdout)
	}
	if stderr != "" {
		t.Errorf("unexpected stderr %s", stderr)
	}
}

func TestExecCmd_NoInput(t *testing.T) {
	_, _, err := runCmd(t, NewExecCmd, "http://127.0.0.1:0", "")
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
}

func TestValidateCmd_Invalid(t *testing.T) {
	api := &fakeAPI{body: `{"data":{"valid":false,"schema":"https://attestate.com/schemas/message.json","violations":[{"location":"","message":"missing properties 'version', 'type'"}]}}`}
	server := api.start(t)

	stdout, _, err := runCmd(t, NewValidateCmd, server.URL, "", "--schema", "config", "--data", `{"hello":"world"}`)
	if err == nil {
		t.Fatal("expected error for invalid document")
	}
	if api.query != "schema=config" {
		t.Errorf("unexpected query %q", api.query)
	}
	if !strings.Contains(stdout, "LOCATION") || !strings.Contains(stdout, "missing properties") {
		t.Errorf("unexpected table %s", stdout)
	}
}

func TestValidateCmd_Valid(t *testing.T) {
	api := &fakeAPI{body: `{"data":{"valid":true,"schema":"https://attestate.com/schemas/message.json"}}`}
	server := api.start(t)

	_, stderr, err := runCmd(t, NewValidateCmd, server.URL, "", "--data", `{"version":"0.0.1","type":"exit"}`)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(stderr, "Valid against") {
		t.Errorf("unexpected stderr %s", stderr)
	}
}

func TestTaskPublishCmd_Exit(t *testing.T) {
	api := &fakeAPI{status: http.StatusAccepted, body: `{"data":{"correlation_id":"c-1"}}`}
	server := api.start(t)

	stdout, _, err := runCmd(t, NewTaskCmd, server.URL, "", "publish", "--exit", "--reply-to", "replies")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if api.path != "/api/v1/tasks" || api.query != "reply_to=replies" {
		t.Errorf("unexpected request %s?%s", api.path, api.query)
	}
	if string(api.sent) != exitMessage {
		t.Errorf("unexpected body %s", api.sent)
	}
	if !strings.Contains(stdout, "c-1") {
		t.Errorf("unexpected stdout %s", stdout)
	}
}

// --- Input ---

func TestReadDocument(t *testing.T) {
	doc, err := readDocument(strings.NewReader(`{"a":1}`), []string{"-"}, "")
	if err != nil || string(doc) != `{"a":1}` {
		t.Errorf("stdin: got %s, %v", doc, err)
	}

	doc, err = readDocument(nil, []string{"ignored.json"}, `{"b":2}`)
	if err != nil || string(doc) != `{"b":2}` {
		t.Errorf("--data must win: got %s, %v", doc, err)
	}

	if _, err := readDocument(nil, nil, "{"); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := readDocument(nil, []string{"/does/not/exist.json"}, ""); err == nil {
		t.Error("expected error for missing file")
	}
}

// --- Output ---

func TestOutput_TableTruncatesCells(t *testing.T) {
	var stdout bytes.Buffer
	out := NewOutputTo(false, &stdout, io.Discard)

	long := strings.Repeat("e", 100)
	out.Table([]string{"ID", "ERROR"}, [][]string{{"a", "line one\nline two"}, {"b", long}})

	text := stdout.String()
	if !strings.Contains(text, "line one line two") {
		t.Errorf("newlines must be flattened: %s", text)
	}
	if strings.Contains(text, long) || !strings.Contains(text, "...") {
		t.Errorf("long cell must be truncated: %s", text)
	}
}
