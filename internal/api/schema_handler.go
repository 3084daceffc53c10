package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/attestate/extraction-worker/internal/schema"
)

// Validate проверяет документ схемой сообщения или конфигурации.
// POST /api/v1/validate?schema=message|config
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("schema")
	if name == "" {
		name = schema.NameMessage
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var err error
	switch name {
	case schema.NameMessage:
		err = h.validator.ValidateMessageJSON(body)
	case schema.NameConfig:
		err = h.validator.ValidateConfig(body)
	default:
		BadRequest(w, "schema must be message or config")
		return
	}

	resp := ValidateResponse{Valid: err == nil, Schema: schema.URL(name)}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		resp.Schema = verr.SchemaURL
		resp.Violations = verr.Violations
	} else if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, resp)
}

// GetSchema возвращает встроенную JSON Schema.
// GET /api/v1/schemas/{name}
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	raw, err := schema.Raw(r.PathValue("name"))
	if errors.Is(err, schema.ErrUnknownSchema) {
		NotFound(w, "schema not found")
		return
	}
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, json.RawMessage(raw))
}
