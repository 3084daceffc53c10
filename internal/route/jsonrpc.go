package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/attestate/extraction-worker/internal/domain"
)

// JSONRPCExecutor — executor для сообщений типа "json-rpc".
//
// Отправляет JSON-RPC 2.0 запрос методом POST на options.url.
//
// Сообщение:
//   - method (string): имя RPC-метода, например eth_getLogs
//   - params (array): параметры вызова
//   - options.url / options.endpoint: адрес узла
//
// Results: поле result ответа в исходном виде (null тоже результат).
type JSONRPCExecutor struct {
	t *transport
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Execute выполняет JSON-RPC вызов.
func (e *JSONRPCExecutor) Execute(ctx context.Context, msg *domain.Message) (json.RawMessage, error) {
	tg, err := e.t.resolve(msg)
	if err != nil {
		return nil, err
	}

	params := msg.Params
	if params == nil {
		params = []json.RawMessage{}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  msg.Method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrHTTPRequest, err)
	}

	status, respBody, err := e.t.do(ctx, tg, http.MethodPost, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, statusError(status, respBody)
	}

	var resp rpcResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRPC, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s: code %d: %s", ErrRPC, msg.Method, resp.Error.Code, resp.Error.Message)
	}

	if len(resp.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Result, nil
}
