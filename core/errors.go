package core

import (
	"context"
	"errors"
	"fmt"
)

// ProviderError represents an error returned by a backend with full context.
type ProviderError struct {
	Provider  string
	Status    int
	RequestID string
	Code      string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (status=%d, code=%s, request_id=%s)",
			e.Provider, e.Message, e.Status, e.Code, e.RequestID)
	}
	return fmt.Sprintf("%s: %s (status=%d, code=%s)",
		e.Provider, e.Message, e.Status, e.Code)
}

// Unwrap returns the underlying error for error chaining.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Sentinel errors for classification.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
	ErrAborted      = errors.New("aborted")
)

// ErrStreamClosed is reported by a DeltaStream or TextStream used after Close.
var ErrStreamClosed = errors.New("stream closed")

// AbortError reports that the caller cancelled the invocation.
// errors.Is(err, ErrAborted) holds for every AbortError, and Unwrap exposes
// the context error that triggered it.
type AbortError struct {
	Cause error
}

// NewAbortError wraps the cancellation cause of ctx.
func NewAbortError(ctx context.Context) *AbortError {
	return &AbortError{Cause: context.Cause(ctx)}
}

func (e *AbortError) Error() string {
	if e.Cause == nil {
		return "aborted"
	}
	return "aborted: " + e.Cause.Error()
}

// Is matches ErrAborted.
func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// IsAbort reports whether err is, or wraps, an AbortError. A bare
// context.Canceled or context.DeadlineExceeded is not an abort on its own:
// a backend's private timeout fails with the same errors as the caller's.
func IsAbort(err error) bool {
	return err != nil && errors.Is(err, ErrAborted)
}

// abortFor classifies err against the invocation context. It is an
// *AbortError when ctx is done or err already is one, and is returned
// unchanged otherwise.
func abortFor(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var ae *AbortError
	if errors.As(err, &ae) {
		return err
	}
	if ctx.Err() != nil {
		return NewAbortError(ctx)
	}
	return err
}

// classifiedError marks an error as transient or permanent for retry policies.
type classifiedError struct {
	err       error
	transient bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its underlying type.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, transient: true}
}

// Permanent marks err as non-retryable regardless of its underlying type.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, transient: false}
}

// ObserverError wraps a failure raised by an Observer. It is handed to the
// configured ErrorHandler and never returned to callers of the orchestrators.
type ObserverError struct {
	Index     int
	EventType EventType
	CallID    string
	Err       error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %d failed on %s event for %s: %v", e.Index, e.EventType, e.CallID, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}
