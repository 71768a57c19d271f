package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownBackend is matched by every UnknownBackendError.
var ErrUnknownBackend = errors.New("unknown backend")

// UnknownBackendError is a caller error: the named backend is not registered.
type UnknownBackendError struct {
	Name string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend %q", e.Name)
}

func (e *UnknownBackendError) Unwrap() error {
	return ErrUnknownBackend
}
