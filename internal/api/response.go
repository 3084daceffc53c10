package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/attestate/extraction-worker/internal/repo"
	"github.com/attestate/extraction-worker/internal/schema"
)

// maxBodySize — максимальный размер тела запроса.
const maxBodySize = 4 << 20

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodePayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnavailable      ErrorCode = "UNAVAILABLE"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки. Violations заполняется для VALIDATION_FAILED.
type ErrorDetail struct {
	Code       ErrorCode          `json:"code"`
	Message    string             `json:"message"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

// DataResponse — тело успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — тело ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success — 200 с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Accepted — 202: задание принято в очередь.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List — 200 со списком и total.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Unavailable — 503: зависимость (очередь, архив, Router) не сконфигурирована.
func Unavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// ValidationFailed — 422 со всеми нарушениями схемы.
func ValidationFailed(w http.ResponseWriter, verr *schema.ValidationError) {
	JSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
		Code:       ErrCodeValidationFailed,
		Message:    "document does not conform to " + verr.SchemaURL,
		Violations: verr.Violations,
	}})
}

// InternalError — 500. Причина уходит в лог, клиенту только код.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
// Возвращает true, если ответ уже отправлен.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}

	InternalError(w, logger, err)
	return true
}

// readBody читает тело не больше maxBodySize.
// При ошибке ответ уже отправлен и ok == false.
func readBody(w http.ResponseWriter, r *http.Request) (body []byte, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body is too large")
			return nil, false
		}
		BadRequest(w, "failed to read request body")
		return nil, false
	}
	return body, true
}
