package utils

import "errors"

// Error taxonomy for the coordination engine. Callers wrap these with
// fmt.Errorf("%w: ...") and controllers map them back to HTTP codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)
