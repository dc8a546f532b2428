package indexing

import (
	"errors"
	"fmt"
)

// Backend registry errors.
var (
	ErrUnknownBackend   = errors.New("unknown search backend")
	ErrDuplicateBackend = errors.New("duplicate search backend name")
	ErrNoBackendName    = errors.New("search backend name is required")
)

// Operation names used in logs and metrics.
const (
	OpAdd     = "add"
	OpAddBulk = "add_bulk"
	OpDelete  = "delete"
)

// BackendError wraps a failure of one backend call.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
