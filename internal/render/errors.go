package render

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies adapter failures for the retry policy.
type ErrorKind string

const (
	Transient ErrorKind = "transient"
	Fatal     ErrorKind = "fatal"
)

// AdapterError is the normalised failure of a render adapter.
type AdapterError struct {
	Kind    ErrorKind
	Op      string // e.g. "beamer.compile", "tts.synthesize"
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s (%s): %s", e.Op, e.Kind, msg)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewTransient wraps err as a retryable failure.
func NewTransient(op string, err error) *AdapterError {
	return &AdapterError{Kind: Transient, Op: op, Err: err}
}

// NewFatal wraps err as a non-retryable failure.
func NewFatal(op string, err error) *AdapterError {
	return &AdapterError{Kind: Fatal, Op: op, Err: err}
}

// Fatalf builds a fatal failure from a message.
func Fatalf(op, format string, args ...any) *AdapterError {
	return &AdapterError{Kind: Fatal, Op: op, Message: fmt.Sprintf(format, args...)}
}

// FromContext classifies an error raised while ctx was live. Deadline expiry is
// transient; cancellation is fatal since nobody is waiting for the result.
func FromContext(ctx context.Context, op string, err error) *AdapterError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return NewTransient(op, err)
	}
	return NewFatal(op, err)
}

// IsTransient reports whether err carries a transient AdapterError. Deadline
// expiry counts as transient; every other error is fatal.
func IsTransient(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind == Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}
