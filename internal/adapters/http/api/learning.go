package api

import (
	"context"
	"net/http"

	service "github.com/okian/profiler/internal/app"
)

// LearningDependencies defines the interface for learning progress reads.
type LearningDependencies interface {
	Learning(ctx context.Context) (service.Learning, error)
}

// LearningHandler reports how much the profiler has learned.
type LearningHandler struct {
	deps LearningDependencies
}

// NewLearningHandler creates a new learning handler.
func NewLearningHandler(deps LearningDependencies) *LearningHandler {
	return &LearningHandler{deps: deps}
}

// HandleGetLearning handles GET /learning requests.
func (h *LearningHandler) HandleGetLearning(w http.ResponseWriter, r *http.Request) {
	l, err := h.deps.Learning(r.Context())
	if err != nil {
		writeFailure(w, "api.get_learning", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
