package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// defaultResultsLimit — сколько записей отдаёт ListResults по умолчанию.
const defaultResultsLimit = 50

// ListResults возвращает последние результаты из архива.
// GET /api/v1/results?limit=N
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	if h.resultRepo == nil {
		Unavailable(w, "result archive is not configured")
		return
	}

	limit := defaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	results, err := h.resultRepo.ListRecent(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	resp := make([]ResultResponse, len(results))
	for i, res := range results {
		resp[i] = ResultFromRepo(res)
	}

	List(w, resp, len(resp))
}

// GetResult возвращает запись архива по ID.
// GET /api/v1/results/{id}
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	if h.resultRepo == nil {
		Unavailable(w, "result archive is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid result id")
		return
	}

	res, err := h.resultRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "result not found") {
		return
	}

	Success(w, ResultFromRepo(*res))
}
