package query

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidationError reports every rejected query parameter with a message the
// caller can act on. It maps to HTTP 400.
type ValidationError struct {
	Fields map[string]string `json:"details"`
}

// Error implements the error interface. Fields are listed in name order.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError extracts a *ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// FromValidation converts ozzo validation.Errors into a *ValidationError.
// Anything else is returned wrapped untouched.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}

	fields := make(map[string]string, len(verrs))
	for name, fe := range verrs {
		if fe != nil {
			fields[name] = fe.Error()
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
