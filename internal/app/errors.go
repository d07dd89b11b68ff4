package service

import "errors"

// Sentinel kinds surfaced to the API.
var (
	// ErrDuplicate reports feedback for a submission that was already
	// recorded. The earlier write stands; it is not a failure.
	ErrDuplicate = errors.New("feedback already recorded")
	// ErrSinkUnavailable reports a failed feedback write. The caller may
	// retry with the same submission id.
	ErrSinkUnavailable = errors.New("feedback sink unavailable")
	// ErrUnknownOutcome reports an outcome that is not a catalog key.
	ErrUnknownOutcome = errors.New("unknown outcome")
	// ErrBadRequest reports malformed input.
	ErrBadRequest = errors.New("bad request")
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
)
