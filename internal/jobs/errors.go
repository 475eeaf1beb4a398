package jobs

import "errors"

// Domain errors for job store operations.
var (
	ErrNotFound = errors.New("job not found")
	ErrConflict = errors.New("job version conflict")
)
