package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("outcome not ranked")
	ErrInvalidLimit = errors.New("invalid hall of fame limit")
	ErrInvalidDelta = errors.New("confirmations must increase")
)
