// Package errs holds the error type every racedb package returns.
//
// Adapters translate driver errors into an *Error carrying one of a small
// set of kinds, so the pool and the score store can decide what to do
// without importing a driver:
//
//	if errs.IsConnectionFailed(err) {
//	    // drop this write; the next Acquire reconnects
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind classifies an error independently of the backend that raised it.
type ErrKind int

const (
	ErrKindUnknown ErrKind = iota
	ErrKindNotFound
	ErrKindConnectionFailed
	ErrKindTimeout
	ErrKindQueryFailed
	ErrKindInvalidInput
	ErrKindPermissionDenied
	ErrKindSetupFailed
	ErrKindUnavailable
	ErrKindPoolExhausted
	// ErrKindPrecondition marks misuse of a connection's in-use flag.
	// It is never returned; it is raised through Abort.
	ErrKindPrecondition
)

var kindNames = [...]string{
	ErrKindUnknown:          "unknown",
	ErrKindNotFound:         "not_found",
	ErrKindConnectionFailed: "connection_failed",
	ErrKindTimeout:          "timeout",
	ErrKindQueryFailed:      "query_failed",
	ErrKindInvalidInput:     "invalid_input",
	ErrKindPermissionDenied: "permission_denied",
	ErrKindSetupFailed:      "setup_failed",
	ErrKindUnavailable:      "unavailable",
	ErrKindPoolExhausted:    "pool_exhausted",
	ErrKindPrecondition:     "precondition",
}

func (k ErrKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[ErrKindUnknown]
	}
	return kindNames[k]
}

// Retryable reports whether a later attempt may succeed unchanged: the
// server may come back, a deadline may be longer, a slot may free up.
func (k ErrKind) Retryable() bool {
	switch k {
	case ErrKindConnectionFailed, ErrKindTimeout, ErrKindSetupFailed, ErrKindPoolExhausted:
		return true
	}
	return false
}

// Error is a classified failure. Cause keeps the driver error for logs.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an error of the given kind without a cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies cause under kind.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// ErrKindUnknown when there is none.
func KindOf(err error) ErrKind {
	var e *Error
	if !errors.As(err, &e) {
		return ErrKindUnknown
	}
	return e.Kind
}

func IsNotFound(err error) bool         { return KindOf(err) == ErrKindNotFound }
func IsTimeout(err error) bool          { return KindOf(err) == ErrKindTimeout }
func IsConnectionFailed(err error) bool { return KindOf(err) == ErrKindConnectionFailed }
func IsQueryFailed(err error) bool      { return KindOf(err) == ErrKindQueryFailed }
func IsInvalidInput(err error) bool     { return KindOf(err) == ErrKindInvalidInput }
func IsPermissionDenied(err error) bool { return KindOf(err) == ErrKindPermissionDenied }
func IsSetupFailed(err error) bool      { return KindOf(err) == ErrKindSetupFailed }
func IsUnavailable(err error) bool      { return KindOf(err) == ErrKindUnavailable }
func IsPoolExhausted(err error) bool    { return KindOf(err) == ErrKindPoolExhausted }

// IsRetryable reports whether err's kind is retryable. Errors that are not
// an *Error are not.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
