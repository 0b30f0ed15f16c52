package core

import (
	"sort"
	"strings"
)

// ValidationError maps field names to their validation failures. It renders
// as 422 with per-field details.
type ValidationError map[string][]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field string, messages ...string) ValidationError {
	return ValidationError{field: messages}
}
