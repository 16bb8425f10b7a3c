package core

import "github.com/google/uuid"

// Run groups invocations that belong to one logical operation and carries
// the correlation identifiers copied into CallMetadata.
type Run struct {
	RunID     string
	SessionID string
	UserID    string

	// Observer, if set, receives every event of the run's invocations.
	Observer Observer

	// ErrorHandler, if set, receives observer failures instead of the
	// package logger.
	ErrorHandler ErrorHandler
}

// RunOption configures a Run.
type RunOption func(*Run)

// NewRun creates a Run with a fresh random RunID.
func NewRun(opts ...RunOption) *Run {
	r := &Run{RunID: uuid.NewString()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithSessionID sets the session identifier.
func WithSessionID(id string) RunOption {
	return func(r *Run) {
		r.SessionID = id
	}
}

// WithUserID sets the user identifier.
func WithUserID(id string) RunOption {
	return func(r *Run) {
		r.UserID = id
	}
}

// WithRunObserver sets the run-scoped observer.
func WithRunObserver(o Observer) RunOption {
	return func(r *Run) {
		r.Observer = o
	}
}

// WithErrorHandler sets the observer error handler.
func WithErrorHandler(h ErrorHandler) RunOption {
	return func(r *Run) {
		r.ErrorHandler = h
	}
}
