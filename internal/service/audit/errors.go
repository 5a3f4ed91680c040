package audit

import "errors"

// ErrValidation is returned for malformed audit queries.
var ErrValidation = errors.New("invalid audit query")
