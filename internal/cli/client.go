package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Типы ответов повторяют api/dto.go: CLI не зависит от internal/api.

// Violation — нарушение схемы.
type Violation struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// ValidateResponse — результат проверки документа схемой.
type ValidateResponse struct {
	Valid      bool        `json:"valid"`
	Schema     string      `json:"schema"`
	Violations []Violation `json:"violations,omitempty"`
}

// PublishTaskResponse — ответ на постановку задания в очередь.
type PublishTaskResponse struct {
	CorrelationID string `json:"correlation_id"`
	ReplyTo       string `json:"reply_to,omitempty"`
}

// ResultResponse — запись архива результатов.
type ResultResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Method       string          `json:"method,omitempty"`
	Commissioner string          `json:"commissioner,omitempty"`
	Message      json.RawMessage `json:"message"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// envelope — конверт ответа API: data для успеха, error для ошибки.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total *int            `json:"total"`
	Error *APIError       `json:"error"`
}

// APIError — ошибка из конверта error.
type APIError struct {
	Status     int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations"`
}

func (e *APIError) Error() string {
	if len(e.Violations) == 0 {
		return e.Code + ": " + e.Message
	}

	details := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		location := v.Location
		if location == "" {
			location = "/"
		}
		details[i] = location + ": " + v.Message
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(details, "; "))
}

// userAgent отправляется с каждым запросом.
const userAgent = "extraction-cli"

// Client — HTTP-клиент для extraction API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// Таймаут покрывает самый долгий execute с retry на стороне API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Execute выполняет сообщение один раз и возвращает сообщение-результат.
// concurrency <= 0 — значение по умолчанию на стороне API.
func (c *Client) Execute(ctx context.Context, message json.RawMessage, concurrency int) (json.RawMessage, error) {
	query := url.Values{}
	if concurrency > 0 {
		query.Set("concurrency", strconv.Itoa(concurrency))
	}

	var result json.RawMessage
	_, err := c.call(ctx, http.MethodPost, "/api/v1/execute", query, message, &result)
	return result, err
}

// Validate проверяет документ схемой message или config.
func (c *Client) Validate(ctx context.Context, schemaName string, doc json.RawMessage) (*ValidateResponse, error) {
	query := url.Values{"schema": {schemaName}}

	var vr ValidateResponse
	_, err := c.call(ctx, http.MethodPost, "/api/v1/validate", query, doc, &vr)
	return &vr, err
}

// GetSchema возвращает встроенную JSON Schema по имени.
func (c *Client) GetSchema(ctx context.Context, name string) (json.RawMessage, error) {
	var doc json.RawMessage
	_, err := c.call(ctx, http.MethodGet, "/api/v1/schemas/"+url.PathEscape(name), nil, nil, &doc)
	return doc, err
}

// PublishTask ставит сообщение в очередь заданий.
func (c *Client) PublishTask(ctx context.Context, message json.RawMessage, replyTo string) (*PublishTaskResponse, error) {
	query := url.Values{}
	if replyTo != "" {
		query.Set("reply_to", replyTo)
	}

	var resp PublishTaskResponse
	_, err := c.call(ctx, http.MethodPost, "/api/v1/tasks", query, message, &resp)
	return &resp, err
}

// ListResults возвращает последние результаты из архива.
func (c *Client) ListResults(ctx context.Context, limit int) ([]ResultResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var results []ResultResponse
	_, err := c.call(ctx, http.MethodGet, "/api/v1/results", query, nil, &results)
	return results, err
}

// GetResult возвращает запись архива по ID.
func (c *Client) GetResult(ctx context.Context, id string) (*ResultResponse, error) {
	var res ResultResponse
	_, err := c.call(ctx, http.MethodGet, "/api/v1/results/"+url.PathEscape(id), nil, nil, &res)
	return &res, err
}

// call выполняет запрос и раскладывает конверт: data в out, error в *APIError.
// Для списков возвращает total (-1, если поля нет).
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body json.RawMessage, out any) (int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		if decodeErr != nil || env.Error == nil {
			return 0, fmt.Errorf("API error: HTTP %d", resp.StatusCode)
		}
		env.Error.Status = resp.StatusCode
		return 0, env.Error
	}
	if decodeErr != nil {
		return 0, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	total := -1
	if env.Total != nil {
		total = *env.Total
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return total, fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return total, nil
}
