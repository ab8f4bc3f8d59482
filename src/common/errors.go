package common

import (
	"errors"
	"fmt"
)

// ErrType enumerates the kinds of failures reported by the skip graph and its
// underlay.
type ErrType uint32

const (
	// OutOfRange is a lookup-table level outside [0, L].
	OutOfRange ErrType = iota
	// DuplicateID is an insertion with a numeric id that is already present.
	DuplicateID
	// NotFound is a lookup or deletion miss.
	NotFound
	// InvalidNameID is a name id that is not a bit string of at most L bits.
	InvalidNameID
	// InitializationFailed is an address resolution or transport setup
	// failure.
	InitializationFailed
	// Unreachable means nothing answered at the target address.
	Unreachable
	// Timeout means the target did not answer in time.
	Timeout
	// RemoteError means the remote handler reported a failure.
	RemoteError
	// Closed means the underlay was terminated.
	Closed
)

var errTypes = []string{
	"Out Of Range",
	"Duplicate ID",
	"Not Found",
	"Invalid Name ID",
	"Initialization Failed",
	"Unreachable",
	"Timeout",
	"Remote Error",
	"Closed",
}

// String ...
func (t ErrType) String() string {
	if int(t) < len(errTypes) {
		return errTypes[t]
	}
	return "Unknown"
}

// Err is the error returned by every package of this module. Scope names the
// component or data type that failed and Key the offending key, if any.
type Err struct {
	scope   string
	errType ErrType
	key     string
	cause   error
}

// NewErr ...
func NewErr(scope string, errType ErrType, key string) Err {
	return Err{
		scope:   scope,
		errType: errType,
		key:     key,
	}
}

// WrapErr is like NewErr but keeps the underlying cause.
func WrapErr(scope string, errType ErrType, key string, cause error) Err {
	return Err{
		scope:   scope,
		errType: errType,
		key:     key,
		cause:   cause,
	}
}

// Type returns the kind of the error.
func (e Err) Type() ErrType {
	return e.errType
}

// Error implements the error interface.
func (e Err) Error() string {
	m := fmt.Sprintf("%s, %s, %s", e.scope, e.key, e.errType)
	if e.cause != nil {
		m = fmt.Sprintf("%s: %v", m, e.cause)
	}
	return m
}

// Unwrap returns the cause, if any.
func (e Err) Unwrap() error {
	return e.cause
}

// Is checks that err, or an error it wraps, is an Err of type t. Every Err
// of the chain is considered, so a remote error re-kinded by a client is both
// its remote kind and a RemoteError.
func Is(err error, t ErrType) bool {
	for err != nil {
		var e Err
		if !errors.As(err, &e) {
			return false
		}
		if e.errType == t {
			return true
		}
		err = e.cause
	}
	return false
}
