package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/attestate/extraction-worker/internal/repo"
	"github.com/attestate/extraction-worker/internal/schema"
)

// Validate DTOs

// ValidateResponse — результат проверки документа схемой.
type ValidateResponse struct {
	Valid      bool               `json:"valid"`
	Schema     string             `json:"schema"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

// Task DTOs

// PublishTaskResponse — ответ на постановку задания в очередь.
type PublishTaskResponse struct {
	CorrelationID string `json:"correlation_id"`
	ReplyTo       string `json:"reply_to,omitempty"`
}

// Result DTOs

// ResultResponse — запись архива результатов.
type ResultResponse struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Method       string          `json:"method,omitempty"`
	Commissioner string          `json:"commissioner,omitempty"`
	Message      json.RawMessage `json:"message"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ResultFromRepo конвертирует repo.Result в ResultResponse.
func ResultFromRepo(r repo.Result) ResultResponse {
	resp := ResultResponse{
		ID:           r.ID,
		Type:         r.Type,
		Method:       r.Method,
		Commissioner: r.Commissioner,
		Message:      r.Message,
		CreatedAt:    r.CreatedAt,
	}
	if r.Error != nil {
		resp.Error = *r.Error
	}
	return resp
}
