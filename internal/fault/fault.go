// Package fault classifies the failures the schedule center reports
// to callers.
package fault

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	AuthorizationDenied      Kind = "authorization_denied"
	ValidationFailure        Kind = "validation_failure"
	GraphConstraintViolation Kind = "graph_constraint_violation"
	ConnectivityFailure      Kind = "connectivity_failure"
	NotFound                 Kind = "not_found"
	Internal                 Kind = "internal"
)

// DeniedReason is the only text a denied caller sees, whether or not
// the target exists.
const DeniedReason = "you do not have permission for this operation"

// Error is a classified failure. Reason is safe to show to callers;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == Internal {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func Denied() *Error {
	return &Error{Kind: AuthorizationDenied, Reason: DeniedReason}
}

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: ValidationFailure, Reason: fmt.Sprintf(format, args...)}
}

// Constraint wraps a graph check failure, keeping its message.
func Constraint(err error) *Error {
	return &Error{Kind: GraphConstraintViolation, Reason: err.Error(), Err: err}
}

func Connectivity(err error) *Error {
	return &Error{Kind: ConnectivityFailure, Reason: "worker peer unavailable", Err: err}
}

func Missing(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Reason: fmt.Sprintf(format, args...)}
}

func Wrap(err error, reason string) *Error {
	return &Error{Kind: Internal, Reason: reason, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// Internal for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Reason returns the caller-facing text for err.
func Reason(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return "internal error"
}
