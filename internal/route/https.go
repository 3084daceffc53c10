package route

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/attestate/extraction-worker/internal/domain"
)

// HTTPSExecutor — executor для сообщений типа "https".
//
// Config (из options):
//   - url / endpoint: адрес запроса (обязательно одно из двух)
//   - method (string): HTTP-метод. Default: GET
//   - headers (map[string]string): HTTP-заголовки
//   - body (string): тело запроса
//   - timeout (number): таймаут в миллисекундах. Default: 30s
//
// Results: тело ответа (JSON, иначе строка).
type HTTPSExecutor struct {
	t *transport
}

// Execute выполняет HTTP-запрос.
func (e *HTTPSExecutor) Execute(ctx context.Context, msg *domain.Message) (json.RawMessage, error) {
	tg, err := e.t.resolve(msg)
	if err != nil {
		return nil, err
	}

	method := http.MethodGet
	var body io.Reader
	if msg.Options != nil {
		if msg.Options.Method != "" {
			method = msg.Options.Method
		}
		if msg.Options.Body != "" {
			body = strings.NewReader(msg.Options.Body)
		}
	}

	status, respBody, err := e.t.do(ctx, tg, method, body, "application/json")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, statusError(status, respBody)
	}

	return bodyResults(respBody)
}

// bodyResults возвращает тело как JSON, если оно валидно, иначе как строку.
func bodyResults(body []byte) (json.RawMessage, error) {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body), nil
	}

	raw, err := json.Marshal(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: encode body: %v", ErrHTTPRequest, err)
	}
	return raw, nil
}
