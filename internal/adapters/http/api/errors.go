package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/profiler/internal/app"
	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/decision"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// retryAfterSeconds is advertised while the profiler is not ready.
const retryAfterSeconds = "30"

func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// classify maps a dependency error to a status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, decision.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	case errors.Is(err, decision.ErrIntegrity):
		return http.StatusInternalServerError, "integrity_fault"
	case errors.Is(err, service.ErrSinkUnavailable):
		return http.StatusBadGateway, "sink_unavailable"
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, service.ErrUnknownOutcome):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeFailure reports err with its classified status.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeError(w, status, code, fmt.Errorf("%s: %w", op, err))
}
