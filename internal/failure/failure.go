package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindValidation Kind = "validation"
	KindBackend    Kind = "backend"
	KindStale      Kind = "stale"
)

const (
	MessageNetwork = "Network error. Please check your connection."
	MessageTimeout = "Request timeout. Please try again."
	MessageBackend = "Something went wrong. Please try again."
)

// Failure is a user-reportable error. Code carries the HTTP status for
// backend failures and is zero otherwise.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	cause   error
}

func (e *Failure) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Failure) Unwrap() error {
	return e.cause
}

// Network wraps a transport error.
func Network(err error) error {
	return &Failure{Kind: KindNetwork, Message: MessageNetwork, cause: err}
}

func Timeout(err error) error {
	return &Failure{Kind: KindTimeout, Message: MessageTimeout, cause: err}
}

// Validation is a local, pre-network rejection of user input.
func Validation(msg string) error {
	return &Failure{Kind: KindValidation, Message: msg}
}

// Backend carries the backend's own message verbatim; an empty message falls
// back to a generic one.
func Backend(code int, msg string) error {
	if msg == "" {
		msg = MessageBackend
	}
	return &Failure{Kind: KindBackend, Code: code, Message: msg}
}

// Stale marks an action result for a record that expired locally while the
// call was in flight.
func Stale(id string) error {
	return &Failure{Kind: KindStale, Message: fmt.Sprintf("booking %s expired before the response arrived", id)}
}

// KindOf returns the kind of a wrapped Failure, or KindBackend for foreign errors.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindBackend
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

// CodeOf returns the HTTP status carried by a backend failure, 0 otherwise.
func CodeOf(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return 0
}

func Is(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
