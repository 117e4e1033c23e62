package sources

import (
	"context"
	"errors"
	"fmt"
)

// The taxonomy callers branch on. Adapters classify everything before it
// leaves them: internal retry bookkeeping never surfaces.
//
//   - TransportError: network or timeout, retryable by the caller.
//   - AuthError: session missing or expired after the adapter's own
//     one-shot relogin was tried or unavailable.
//   - ParseError: the upstream document changed shape. Adapters log these
//     and return empty results; the type exists for paths where nothing
//     sensible can be returned.
//   - UnsupportedError: the adapter does not implement the operation.
//     Always surfaced, never retried.
//   - Cancellation is context.Canceled/DeadlineExceeded passed through
//     untouched, so callers can swallow it silently at every layer.

type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type AuthError struct {
	SourceID string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.SourceID, e.Reason)
}

type ParseError struct {
	SourceID string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: %s: %s", e.SourceID, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

type UnsupportedError struct {
	SourceID string
	Op       string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.SourceID, e.Op)
}

// Transport wraps a network failure, preserving context cancellation so it
// stays recognizable as such.
func Transport(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

func IsParse(err error) bool {
	var p *ParseError
	return errors.As(err, &p)
}

func IsUnsupported(err error) bool {
	var u *UnsupportedError
	return errors.As(err, &u)
}

// IsCancellation reports whether the caller abandoned the operation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
