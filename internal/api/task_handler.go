package api

import (
	"errors"
	"net/http"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/schema"
)

// PublishTask ставит сообщение в очередь заданий RabbitMQ.
// POST /api/v1/tasks?reply_to=queue
//
// Сообщение проверяется схемой до публикации: невалидное получает 422
// со списком нарушений и в очередь не попадает.
func (h *Handler) PublishTask(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		Unavailable(w, "message queue is not configured")
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	if err := h.validator.ValidateMessageJSON(body); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			ValidationFailed(w, verr)
			return
		}
		BadRequest(w, err.Error())
		return
	}

	msg, err := domain.ParseMessage(body)
	if err != nil {
		BadRequest(w, "request body must be a JSON object")
		return
	}

	replyTo := r.URL.Query().Get("reply_to")
	correlationID, err := h.publisher.PublishTask(r.Context(), msg, replyTo)
	if err != nil {
		InternalError(w, requestLogger(r, h.logger), err)
		return
	}

	Accepted(w, PublishTaskResponse{CorrelationID: correlationID, ReplyTo: replyTo})
}
