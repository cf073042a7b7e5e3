// Package fault classifies errors crossing the backend and storage
// boundaries into a small taxonomy the UI layer can act on.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an error.
type Kind int

const (
	// Unknown covers errors that carry no classification.
	Unknown Kind = iota
	// NotFound means the requested entity or object does not exist.
	NotFound
	// Validation means the input was rejected before any remote call.
	Validation
	// Authorization means the caller lacks permission for the operation.
	Authorization
	// Configuration means a fixed resource (bucket, table, endpoint) is
	// missing or inaccessible. Not transient; retrying will not help.
	Configuration
	// Conflict means the operation collided with existing state, such as
	// an object name under a no-overwrite policy.
	Conflict
	// Transport means a network or server failure, potentially transient.
	Transport
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case Configuration:
		return "configuration"
	case Conflict:
		return "conflict"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from an error chain.
// Unclassified errors report Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage returns the text shown to end users. Transport errors are
// replaced with a generic retry hint so raw platform text never leaks;
// all other kinds surface their classified message verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == Transport {
		return "a temporary network or server problem occurred, please try again"
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return err.Error()
}
