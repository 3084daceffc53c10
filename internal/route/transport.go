package route

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/telemetry"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// maxResponseBytes ограничивает размер читаемого ответа.
	maxResponseBytes = 32 << 20
)

// target — разрешённый адрес запроса с параметрами.
type target struct {
	url     string
	headers map[string]string
	timeout time.Duration
}

// transport — общий HTTP-слой executor'ов.
type transport struct {
	store  *endpoint.Store
	client *http.Client
}

// resolve определяет адрес запроса.
//
// Порядок:
//   - options.endpoint — запись в Endpoint Store (отсутствие — ошибка вызывающему)
//   - options.url — endpoint по origin подмешивает timeout и headers, если есть
//
// Заголовки и timeout из сообщения имеют приоритет над endpoint'ом.
func (t *transport) resolve(msg *domain.Message) (*target, error) {
	opts := msg.Options
	if opts == nil {
		opts = &domain.Options{}
	}

	var def endpoint.Definition
	switch {
	case opts.Endpoint != "":
		d, err := t.store.Lookup(opts.Endpoint)
		if err != nil {
			return nil, err
		}
		def = d
	case opts.URL != "":
		if d, err := t.store.LookupURL(opts.URL); err == nil {
			def = d
		}
	default:
		return nil, ErrMissingURL
	}

	tg := &target{
		url:     opts.URL,
		headers: make(map[string]string, len(def.Headers)+len(opts.Headers)),
		timeout: defaultHTTPTimeout,
	}
	if tg.url == "" {
		tg.url = def.URL
	}
	if def.Timeout > 0 {
		tg.timeout = def.TimeoutDuration()
	}
	if opts.Timeout > 0 {
		tg.timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	for k, v := range def.Headers {
		tg.headers[k] = v
	}
	for k, v := range opts.Headers {
		tg.headers[k] = v
	}

	return tg, nil
}

// do выполняет запрос и возвращает статус и тело ответа.
func (t *transport) do(ctx context.Context, tg *target, method string, body io.Reader, contentType string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, tg.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, tg.url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}

	for key, val := range tg.headers {
		req.Header.Set(key, val)
	}
	if body != nil && contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	logger := telemetry.FromContext(ctx)
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%w: timed out after %v", ErrHTTPRequest, tg.timeout)
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	logger.Debug("remote call finished",
		"method", method,
		"url", redact(tg.url),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return resp.StatusCode, respBody, nil
}

// statusError формирует ошибку для HTTP >= 400.
func statusError(status int, body []byte) error {
	return fmt.Errorf("%w: HTTP %d: %s", ErrHTTPRequest, status, truncate(string(body), 200))
}

// redact убирает query из URL для логов (в нём часто лежат API-ключи).
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
