package session

import (
	"errors"
	"fmt"

	"github.com/abhisek/stepwise/internal/store"
)

// Kind classifies engine errors for callers.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindInvalidState Kind = "invalid_state"
	KindInvalidStep  Kind = "invalid_step"
	KindValidation   Kind = "validation_error"
	KindDependency   Kind = "dependency_error"
	KindInternal     Kind = "internal"
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrInvalidStep  = &Error{Kind: KindInvalidStep}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrDependency   = &Error{Kind: KindDependency}
	ErrInternal     = &Error{Kind: KindInternal}
)

// Error is returned by every engine operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = e.Message
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindInternal when err is not an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// storeError translates a persistence error. Engine errors raised inside a
// unit of work pass through unchanged.
func storeError(op string, err error) error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Op: op, Message: "session not found", Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindInvalidState, Op: op, Message: "session was modified concurrently", Err: err}
	}
	return &Error{Kind: KindInternal, Op: op, Message: "persistence failure", Err: err}
}
