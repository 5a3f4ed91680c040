package health

import "errors"

// Sentinel errors for the health service layer.
var (
	ErrNotFound   = errors.New("not found")
	ErrStaleWrite = errors.New("stale write: entity was modified concurrently")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")
)
