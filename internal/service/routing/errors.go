package routing

import "errors"

// Sentinel errors for the routing service layer.
var (
	ErrNotFound   = errors.New("routing rule not found")
	ErrValidation = errors.New("validation failed")
)
