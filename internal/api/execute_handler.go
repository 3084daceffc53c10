package api

import (
	"net/http"
	"strconv"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/telemetry"
	"github.com/attestate/extraction-worker/internal/worker"
)

// Execute выполняет одно сообщение и возвращает результат.
// POST /api/v1/execute?concurrency=N
//
// Ошибки выполнения и схемы — это данные: ответ 200 с полем error в сообщении.
// 400 — только если тело не JSON-объект.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	if h.router == nil {
		Unavailable(w, "router is not configured")
		return
	}

	concurrency := h.concurrency
	if v := r.URL.Query().Get("concurrency"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			BadRequest(w, "concurrency must be a positive integer")
			return
		}
		concurrency = n
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	msg, err := domain.ParseMessage(body)
	if err != nil {
		BadRequest(w, "request body must be a JSON object")
		return
	}

	ctx := telemetry.WithLogger(r.Context(), requestLogger(r, h.logger))
	Success(w, worker.Execute(ctx, h.router, msg, concurrency))
}
