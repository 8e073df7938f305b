package record

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup failures. Distinct kinds: zero matches and multiple matches are
// different caller mistakes and must be distinguishable with errors.Is.
var (
	ErrNotFound  = errors.New("record not found")
	ErrAmbiguous = errors.New("filter matched more than one record")
)

// FieldViolation is one failed validation rule on one attribute.
type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError collects every violation found in a create or update
// payload, rather than surfacing only the first.
type ValidationError struct {
	Entity     string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("validation failed for %s", e.Entity)
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Entity, strings.Join(parts, "; "))
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
