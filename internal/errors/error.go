package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindParse            Kind = "parse"
	KindNotFound         Kind = "not_found"
	KindUnknownEvent     Kind = "unknown_event"
	KindInvalidReference Kind = "invalid_reference"
	KindIO               Kind = "io"
	KindTimeout          Kind = "timeout"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrParse            = &Error{Kind: KindParse, Message: "parse error"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnknownEvent     = &Error{Kind: KindUnknownEvent, Message: "unknown event"}
	ErrInvalidReference = &Error{Kind: KindInvalidReference, Message: "invalid reference"}
	ErrIO               = &Error{Kind: KindIO, Message: "i/o failure"}
	ErrTimeout          = &Error{Kind: KindTimeout, Message: "timeout"}
)

// Error is a classified error with the operation that produced it.
type Error struct {
	// Kind is the error class.
	Kind Kind

	// Op is the operation that failed (e.g., "dom.Append", "bridge.decode").
	Op string

	// Message is a short description of the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
