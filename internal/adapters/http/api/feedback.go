package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/profiler/internal/app"
)

// FeedbackDependencies defines the interface for feedback recording.
type FeedbackDependencies interface {
	RecordFeedback(ctx context.Context, req service.FeedbackRequest) (service.FeedbackReceipt, error)
}

type ackResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// FeedbackHandler handles feedback requests.
type FeedbackHandler struct {
	deps FeedbackDependencies
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(deps FeedbackDependencies) *FeedbackHandler {
	return &FeedbackHandler{deps: deps}
}

// HandlePostFeedback handles POST /feedback requests. A repeated submission
// id is acknowledged as a duplicate; a sink failure is 502 and may be
// retried with the same body.
func (h *FeedbackHandler) HandlePostFeedback(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_feedback"
	var req service.FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, op, wrapKind(op, ErrBadRequest, err))
		return
	}
	receipt, err := h.deps.RecordFeedback(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", SubmissionID: receipt.SubmissionID, Duplicate: true})
	case errors.Is(err, service.ErrUnknownOutcome):
		// An outcome the player was never shown is a malformed request.
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case err != nil:
		writeFailure(w, op, err)
	default:
		writeJSON(w, http.StatusCreated, ackResponse{Status: "recorded", SubmissionID: receipt.SubmissionID})
	}
}
