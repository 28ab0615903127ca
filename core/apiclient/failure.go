package apiclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failed request.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindUnauthorized
	KindHTTP
	KindMalformed
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindUnauthorized:
		return "Unauthorized"
	case KindHTTP:
		return "HttpError"
	case KindMalformed:
		return "MalformedResponse"
	case KindConflict:
		return "ValidationConflict"
	}
	return "Unknown"
}

// outcome is the metrics label of a Kind.
func (k Kind) outcome() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindHTTP:
		return "http"
	case KindMalformed:
		return "malformed"
	case KindConflict:
		return "conflict"
	}
	return "ok"
}

const msgSessionExpired = "session expired"

// Failure is a request that reached (or tried to reach) the upstream API and did not succeed.
// Status is set for Unauthorized, HttpError and ValidationConflict.
type Failure struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Kind == KindHTTP {
		return fmt.Sprintf("%s(%d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure returns the *Failure behind `err`, if any.
func AsFailure(err error) (*Failure, bool) {
	if err == nil {
		return nil, false
	}
	f, ok := errors.Cause(err).(*Failure)
	return f, ok
}

// KindOf returns the failure kind of `err`, 0 when `err` is not a *Failure.
func KindOf(err error) Kind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return 0
}

func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// Message returns the text to display for `err`.
func Message(err error) string {
	if f, ok := AsFailure(err); ok {
		return f.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
