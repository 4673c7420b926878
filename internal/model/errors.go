package model

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotInitialized is returned by a backend used before its open/migrate step finished.
	ErrNotInitialized = errors.New("backend not initialized")
	// ErrNotAuthenticated is returned by the remote backend when no session is present.
	ErrNotAuthenticated = errors.New("authentication required")
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError captures field level problems with an intent.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, ok := v.FieldErrors[field]; ok {
		return
	}
	v.FieldErrors[field] = message
}
