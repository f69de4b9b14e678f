package service

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the engine's error taxonomy. Handlers map these to
// response codes with errors.Is; services wrap them with context via %w.
var (
	// ErrIneligible: access precondition unmet (out of window, no
	// remaining attempts, not enrolled, exam unavailable).
	ErrIneligible = errors.New("not eligible for this exam")

	// ErrNotFound: no such session, exam or question.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: identity/ownership mismatch.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState: operation not valid for the session's current
	// status, e.g. answering a terminal session.
	ErrInvalidState = errors.New("operation not valid for session status")

	// ErrConflict: optimistic-version mismatch that survived the single
	// internal retry. The caller should refresh and retry.
	ErrConflict = errors.New("session version conflict")
)

// ValidationError reports malformed payload items, keyed by field so batch
// callers learn exactly which items failed and why. A batch carrying any
// invalid item writes nothing.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}
