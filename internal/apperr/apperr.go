// Package apperr defines the error kinds returned by sigdesk operations.
//
// A kind is a sentinel error. Operations wrap it with a user-facing message
// through Errorf so callers can branch with errors.Is and still surface a
// readable explanation.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrLockTimeout            = errors.New("lock timeout")
	ErrUpstream               = errors.New("upstream error")
	ErrEmptyInput             = errors.New("empty input")
	ErrNotSignatureGenerating = errors.New("service does not generate signatures")
	ErrSubmission             = errors.New("submission error")
	ErrUnauthorized           = errors.New("unauthorized")
)

// Error carries a kind and the message shown to the caller.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
