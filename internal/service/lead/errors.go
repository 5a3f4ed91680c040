package lead

import "errors"

// Sentinel errors for the lead service layer.
var (
	ErrNotFound   = errors.New("lead not found")
	ErrValidation = errors.New("validation failed")
)
