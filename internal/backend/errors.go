package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used to classify backend failures. Orchestrators branch on
// these instead of HTTP status codes.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("transient failure")
	ErrJobFailed  = errors.New("job failed")
)

// IsTransient reports whether an error should be retried on the next poll tick
// rather than surfaced as a failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Message extracts a human-readable message from a backend error, stripping
// the sentinel prefix so it can be shown to users directly.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrTransient, ErrJobFailed} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

// classify wraps an HTTP failure with the sentinel matching its status code.
// The detail string should already contain any message the backend provided.
func classify(statusCode int, operation, detail string) error {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = fmt.Sprintf("backend returned %d", statusCode)
	}
	marker := ErrTransient
	switch {
	case statusCode == 404:
		marker = ErrNotFound
	case statusCode == 409:
		marker = ErrConflict
	case statusCode >= 400 && statusCode < 500:
		marker = ErrValidation
	}
	return fmt.Errorf("%w: %s: %s", marker, operation, detail)
}
