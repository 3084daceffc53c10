package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(h.logger),
		Recovery(h.logger),
		Logging(h.logger),
		Instrument(h.metrics),
	)

	// One-shot execution
	mux.Handle("POST /api/v1/execute", chain(http.HandlerFunc(h.Execute)))

	// Schemas
	mux.Handle("POST /api/v1/validate", chain(http.HandlerFunc(h.Validate)))
	mux.Handle("GET /api/v1/schemas/{name}", chain(http.HandlerFunc(h.GetSchema)))

	// Queue
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.PublishTask)))

	// Archive
	mux.Handle("GET /api/v1/results", chain(http.HandlerFunc(h.ListResults)))
	mux.Handle("GET /api/v1/results/{id}", chain(http.HandlerFunc(h.GetResult)))
}
