package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/profiler/internal/app"
)

// HallOfFameDependencies defines the interface for hall of fame reads.
type HallOfFameDependencies interface {
	HallOfFame(ctx context.Context, limit int) ([]service.FameEntry, error)
}

// HallOfFameHandler handles hall of fame requests.
type HallOfFameHandler struct {
	deps     HallOfFameDependencies
	maxLimit int
}

// NewHallOfFameHandler creates a new hall of fame handler.
func NewHallOfFameHandler(deps HallOfFameDependencies, maxLimit int) *HallOfFameHandler {
	return &HallOfFameHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetHallOfFame handles GET /hall-of-fame?limit=N requests. Without
// limit the configured default size is used.
func (h *HallOfFameHandler) HandleGetHallOfFame(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_hall_of_fame"
	n := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", wrapKind(op, ErrBadRequest, errors.New("limit exceeds maximum")))
			return
		}
	}
	entries, err := h.deps.HallOfFame(r.Context(), n)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
