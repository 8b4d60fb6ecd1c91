package attendance

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine and remote failures so callers can decide
// retryability.
type ErrorKind int

const (
	// KindNetwork is a transient failure: no connectivity or a timeout.
	// Retry-eligible by user action.
	KindNetwork ErrorKind = iota + 1
	// KindAuth means the session token is missing, expired or rejected.
	// Terminal for the session.
	KindAuth
	// KindServer is a non-2xx response carrying a server-supplied message.
	KindServer
	// KindNotFound means the id or day does not exist remotely. Distinct
	// from a day that simply hasn't been filled yet.
	KindNotFound
	// KindInvalid is a data-integrity fault (malformed record or unknown
	// status). Never expected in normal operation.
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error is the classified failure type crossing the engine boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NetworkError wraps a transient transport failure.
func NetworkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

// AuthError reports a missing or rejected session token.
func AuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// ServerError carries the human-readable message supplied by the remote
// system. It is shown to the user as-is.
func ServerError(message string) *Error {
	return &Error{Kind: KindServer, Message: message}
}

// NotFoundError reports that an id or day does not exist remotely.
func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf returns the classification of err, or 0 when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var inv *InvalidRecordError
	var unk *UnknownStatusError
	if errors.As(err, &inv) || errors.As(err, &unk) {
		return KindInvalid
	}
	return 0
}

// IsNetwork reports whether err is a transient transport failure.
func IsNetwork(err error) bool { return KindOf(err) == KindNetwork }

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound || errors.Is(err, ErrNotFound)
}

// ErrNotFound is the cache's miss sentinel.
var ErrNotFound = errors.New("attendance: record not found")

// InvalidRecordError reports a record violating the field-presence
// invariants. Logged and surfaced as a generic error, never a crash.
type InvalidRecordError struct {
	ID     string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid attendance record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid attendance record %s: %s", e.ID, e.Reason)
}

// UnknownStatusError reports a wire status string outside the known set.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown attendance status %q", e.Status)
}
