package workflow

import (
	"errors"
	"fmt"

	"github.com/sbnctech/murmurant-sub011/internal/auth"
)

// Rejection codes for the non-denial failure modes. Together with the
// auth denial codes these form the stable taxonomy callers map to wire
// status codes.
const (
	CodeNotFound          = "not_found"
	CodeUnknownAction     = "unknown_action"
	CodeInvalidTransition = "invalid_transition"
	CodeGuardFailed       = "guard_failed"
	CodeConflict          = "conflict"
	CodeInternal          = "internal"
)

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("workflow: entity not found")
	// ErrConflict indicates the conditional commit lost a race: the
	// persisted status no longer matches what the request was validated
	// against. The caller may re-read and re-evaluate.
	ErrConflict = errors.New("workflow: concurrent transition conflict")
)

// UnknownActionError: the action is not declared for this entity kind.
type UnknownActionError struct {
	Kind   Kind
	Action ActionName
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("workflow: %s has no action %q", e.Kind, e.Action)
}

// InvalidTransitionError: the action exists, but is not legal from the
// entity's current status. The status is left unchanged.
type InvalidTransitionError struct {
	Kind   Kind
	Action ActionName
	From   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow: %s cannot %s from %s", e.Kind, e.Action, e.From)
}

// GuardError: a data-integrity precondition did not hold.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string {
	return "workflow: " + e.Reason
}

// Code maps any error produced by this package (or a propagated auth
// denial) to its stable machine-readable code. Unrecognised errors are
// infrastructure failures and map to CodeInternal; callers must treat
// those as 500-class, never as policy denials.
func Code(err error) string {
	var denial *auth.Denial
	if errors.As(err, &denial) {
		return denial.Code
	}
	var unknown *UnknownActionError
	if errors.As(err, &unknown) {
		return CodeUnknownAction
	}
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) {
		return CodeInvalidTransition
	}
	var guard *GuardError
	if errors.As(err, &guard) {
		return CodeGuardFailed
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	}
	return CodeInternal
}
