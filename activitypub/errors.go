package activitypub

import (
	"errors"
	"fmt"
)

// Kind classifies why processing an activity or resolving an object failed.
type Kind int

const (
	KindProtocolViolation Kind = iota + 1
	KindForbidden
	KindNotFound
	KindFetchBudgetExceeded
	KindValidation
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindProtocolViolation:
		return "protocol violation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindFetchBudgetExceeded:
		return "fetch budget exceeded"
	case KindValidation:
		return "validation error"
	case KindPersistence:
		return "persistence error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrProtocolViolation   = &Error{Kind: KindProtocolViolation}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrFetchBudgetExceeded = &Error{Kind: KindFetchBudgetExceeded}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrPersistence         = &Error{Kind: KindPersistence}
)

// Error is the typed failure returned by the federation core.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func protocolError(op, format string, args ...any) error {
	return newError(KindProtocolViolation, op, format, args...)
}

func forbidden(op, format string, args ...any) error {
	return newError(KindForbidden, op, format, args...)
}

func notFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

func validationError(op, format string, args ...any) error {
	return newError(KindValidation, op, format, args...)
}

// persistence wraps a store failure. Errors that already carry a Kind pass through.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != 0 {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}
