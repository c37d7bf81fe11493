// Package cherr provides the error facility used by the chunk engine.
// Every non-OK result carries a kind, a severity and a message, and works
// with errors.Is through per-kind sentinels.
package cherr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInvalidArg means a caller passed an argument outside the accepted range
	KindInvalidArg Kind = iota + 1
	// KindOutOfMemory means the arena could not satisfy an allocation
	KindOutOfMemory
	// KindEndOfData means a read ran past the committed payload
	KindEndOfData
	// KindOutOfBounds means a cursor move targeted a position past the payload
	KindOutOfBounds
	// KindInvalidState means an operation requires setup that never happened
	KindInvalidState
	// KindNotFound means an identifier seek missed; informational, not fatal
	KindNotFound
	// KindCorrupt means the data itself is inconsistent
	KindCorrupt
	// KindUnsupportedVersion means the wire version discriminant is unknown
	KindUnsupportedVersion
	// KindNotSupported means a valid but unimplemented format combination
	KindNotSupported
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidArg:
		return "invalid argument"
	case KindOutOfMemory:
		return "out of memory"
	case KindEndOfData:
		return "end of data"
	case KindOutOfBounds:
		return "out of bounds"
	case KindInvalidState:
		return "invalid state"
	case KindNotFound:
		return "not found"
	case KindCorrupt:
		return "corrupt data"
	case KindUnsupportedVersion:
		return "unsupported version"
	case KindNotSupported:
		return "not supported"
	default:
		return fmt.Sprintf("KIND(%d)", int(k))
	}
}

// Severity distinguishes fatal failures from informational ones.
type Severity int

const (
	// SeverityInfo marks conditions callers routinely continue past,
	// such as an absent optional section
	SeverityInfo Severity = iota
	// SeverityError marks failures that invalidate the operation's output
	SeverityError
)

// Error is the concrete error type returned by all chunk operations.
type Error struct {
	Kind     Kind
	Severity Severity
	Msg      string
	cause    error
}

// Per-kind sentinels. Comparing with errors.Is matches on kind only, so
// callers can branch on taxonomy without caring about the message.
var (
	ErrInvalidArg         = &Error{Kind: KindInvalidArg, Severity: SeverityError}
	ErrOutOfMemory        = &Error{Kind: KindOutOfMemory, Severity: SeverityError}
	ErrEndOfData          = &Error{Kind: KindEndOfData, Severity: SeverityError}
	ErrOutOfBounds        = &Error{Kind: KindOutOfBounds, Severity: SeverityError}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Severity: SeverityError}
	ErrNotFound           = &Error{Kind: KindNotFound, Severity: SeverityInfo}
	ErrCorrupt            = &Error{Kind: KindCorrupt, Severity: SeverityError}
	ErrUnsupportedVersion = &Error{Kind: KindUnsupportedVersion, Severity: SeverityError}
	ErrNotSupported       = &Error{Kind: KindNotSupported, Severity: SeverityError}
)

// New creates an error of the given kind with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Severity: severityFor(kind), Msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Severity: severityFor(kind), Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Severity: severityFor(kind), Msg: msg, cause: cause}
}

func severityFor(kind Kind) Severity {
	if kind == KindNotFound {
		return SeverityInfo
	}
	return SeverityError
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.cause == nil:
		return e.Kind.String()
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsKind reports whether err is (or wraps) a chunk error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// SeverityOf returns the severity of err, or SeverityError when err is not
// a chunk error.
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityError
}
