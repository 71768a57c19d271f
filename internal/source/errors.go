// Package source reaches backends: it lists their tools and executes calls on them.
package source

import (
	"errors"
	"fmt"
)

// ErrUnsupportedTransport is returned for a backend whose transport no source handles.
var ErrUnsupportedTransport = errors.New("unsupported transport")

// AcquisitionError reports that a backend's tool catalog could not be fetched.
type AcquisitionError struct {
	Backend string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire tools from %s: %v", e.Backend, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// ExecutionError reports that a backend failed to run a tool.
type ExecutionError struct {
	Backend string
	Tool    string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s on %s: %v", e.Tool, e.Backend, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
