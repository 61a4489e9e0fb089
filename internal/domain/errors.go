package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory is returned when an event references a category key
	// missing from the formula registry. This is a hard rejection, never a zero score.
	ErrUnknownCategory = errors.New("unknown exercise category")
	// ErrInconsistentState indicates stored user metrics violate an invariant.
	// The tracker refuses to apply deltas on top of corrupt state.
	ErrInconsistentState = errors.New("inconsistent user metrics state")
	// ErrVersionConflict signals an optimistic-concurrency failure persisting metrics.
	ErrVersionConflict = errors.New("user metrics version conflict")
	// ErrEventNotFound is returned when a scored event cannot be located.
	ErrEventNotFound = errors.New("score event not found")
)

// ValidationError describes a malformed input field. It is surfaced to the
// caller unchanged; nothing is mutated before validation passes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
