package gateway

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyQuery is returned when a ranked search has no query text.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrToolNotFound is returned for a tool name absent from the catalog.
	ErrToolNotFound = errors.New("tool not found")
	// ErrBackendExists is returned when registering a name already in use.
	ErrBackendExists = errors.New("backend already registered")
	// ErrRefreshFailed is returned when a backend's catalog could not be fetched.
	ErrRefreshFailed = errors.New("refresh failed")
)

// ValidationError lists the problems found with a request body.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Issues, "; ")
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and flattens the result.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Issues: []string{err.Error()}}
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, fe.Field()+": failed "+fe.Tag())
	}
	return &ValidationError{Issues: issues}
}
