package oracle

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProvider is returned by New for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported oracle provider")

// OracleError reports a failure reaching the oracle or reading its answer.
type OracleError struct {
	Provider string
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s oracle: %v", e.Provider, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}
