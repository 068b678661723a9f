// Package planerr implements an error taxonomy as a typed Kind carried
// on a wrapped error, so callers inspect a stable Kind via
// errors.As/errors.Is instead of string-matching a message or relying
// on exceptions for control flow.
package planerr

import (
	"errors"
	"fmt"
)

// Kind classifies a planning-engine failure.
type Kind string

const (
	// InvalidInput: out-of-range HOS hours, non-positive distance/
	// capacity, zero or negative mpg, missing origin. No state
	// changes; surfaced to the caller verbatim.
	InvalidInput Kind = "InvalidInput"

	// InsufficientData: a distance, rest area, or fuel station is
	// unavailable at simulation time. Recorded in feasibility_issues;
	// simulation continues.
	InsufficientData Kind = "InsufficientData"

	// ProviderFailure: a provider call failed or timed out. Provider
	// calls are not retried and no engine operation returns this kind:
	// a failed distance pair is left out of the matrix (the simulator
	// then uses the fallback distance) and a failed rest-area or fuel
	// lookup is recorded in feasibility_issues.
	ProviderFailure Kind = "ProviderFailure"

	// StorePreconditionFailure: activation against a non-existent
	// plan, update to a missing plan, illegal segment transition.
	StorePreconditionFailure Kind = "StorePreconditionFailure"

	// ConcurrencyConflict: two replans for the same driver collide. The
	// Dynamic Update Handler's per-driver lock waits without a deadline,
	// so no engine operation returns this kind.
	ConcurrencyConflict Kind = "ConcurrencyConflict"

	// Fatal: an invariant violation inside the simulator. Never
	// auto-retried; requires operator attention.
	Fatal Kind = "Fatal"
)

// Error is the structural error type returned by every engine
// operation that can fail in a taxonomized way. PlanID is included
// whenever known, alongside a stable Kind code.
type Error struct {
	Kind   Kind
	PlanID string
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	if e.PlanID != "" {
		return fmt.Sprintf("[%s] plan=%s: %s", e.Kind, e.PlanID, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs a taxonomized error with no wrapped cause.
func New(kind Kind, planID, msg string) *Error {
	return &Error{Kind: kind, PlanID: planID, Msg: msg}
}

// Wrap constructs a taxonomized error wrapping cause.
func Wrap(kind Kind, planID, msg string, cause error) *Error {
	return &Error{Kind: kind, PlanID: planID, Msg: msg, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
