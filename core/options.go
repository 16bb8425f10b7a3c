package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// FunctionOption configures a single StreamText or GenerateText invocation.
type FunctionOption func(*functionOptions)

type functionOptions struct {
	functionID string
	observers  []Observer
	run        *Run
	logging    *LogMode
	settings   *Settings
}

func newFunctionOptions(opts []FunctionOption) *functionOptions {
	o := &functionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFunctionID sets the logical name recorded in CallMetadata.
func WithFunctionID(id string) FunctionOption {
	return func(o *functionOptions) {
		o.functionID = id
	}
}

// WithObservers adds observers for this invocation only.
func WithObservers(observers ...Observer) FunctionOption {
	return func(o *functionOptions) {
		o.observers = append(o.observers, observers...)
	}
}

// WithRun attaches the invocation to a run.
func WithRun(r *Run) FunctionOption {
	return func(o *functionOptions) {
		o.run = r
	}
}

// WithLogging overrides the global function-call logging mode.
func WithLogging(mode LogMode) FunctionOption {
	return func(o *functionOptions) {
		o.logging = &mode
	}
}

// WithSettings merges s into the model's settings for this invocation.
// The model itself is not modified.
func WithSettings(s Settings) FunctionOption {
	return func(o *functionOptions) {
		c := s.Clone()
		o.settings = &c
	}
}

func (o *functionOptions) errorHandler() ErrorHandler {
	if o.run != nil {
		return o.run.ErrorHandler
	}
	return nil
}

// newCallMetadata builds the immutable metadata of one invocation.
func (o *functionOptions) newCallMetadata(
	ft FunctionType,
	info ModelInformation,
	settings Settings,
	input any,
	d DurationMeasurement,
) CallMetadata {
	md := CallMetadata{
		FunctionType:   ft,
		CallID:         newCallID(d.StartTime()),
		FunctionID:     o.functionID,
		Model:          info,
		Settings:       settings.ForEvent(),
		Input:          input,
		StartTimestamp: d.StartTime(),
	}
	if o.run != nil {
		md.RunID = o.run.RunID
		md.SessionID = o.run.SessionID
		md.UserID = o.run.UserID
	}
	return md
}

func (o *functionOptions) callOptions(settings Settings) CallOptions {
	return CallOptions{
		FunctionID: o.functionID,
		Settings:   settings,
		Run:        o.run,
	}
}

// newCallID returns "call-" followed by a ULID for t. DefaultEntropy is
// monotonic and safe for concurrent use, so ids stay unique within a
// millisecond.
func newCallID(t time.Time) string {
	return "call-" + ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
