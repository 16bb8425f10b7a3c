package core

import "time"

// EventType identifies a lifecycle event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventFinished EventType = "finished"
)

// FunctionType identifies which orchestrator produced an event.
type FunctionType string

const (
	FunctionTextGeneration FunctionType = "text-generation"
	FunctionTextStreaming  FunctionType = "text-streaming"
)

// ResultStatus classifies how an invocation finished.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusAbort   ResultStatus = "abort"
)

// ModelInformation identifies the backend behind an invocation.
type ModelInformation struct {
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
}

// CallMetadata is created once when an invocation starts and is shared,
// unchanged, by its started and finished events.
type CallMetadata struct {
	FunctionType FunctionType `json:"function_type"`

	CallID     string `json:"call_id"`
	RunID      string `json:"run_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	FunctionID string `json:"function_id,omitempty"`

	Model    ModelInformation `json:"model"`
	Settings map[string]any   `json:"settings"`
	Input    any              `json:"input"`

	StartTimestamp time.Time `json:"start_timestamp"`
}

// Result is the outcome carried by a finished event. Exactly one of the
// status-specific fields is meaningful: Output and Response for success,
// Err for error. An abort carries neither.
type Result struct {
	Status   ResultStatus
	Output   string
	Response any
	Err      error
}

// Event is a lifecycle notification. A started event carries only Metadata;
// a finished event also carries the timing fields and Result.
type Event struct {
	Type     EventType
	Metadata CallMetadata

	FinishTimestamp time.Time
	Duration        time.Duration
	Result          *Result
}

// DurationMs returns the invocation duration in milliseconds.
func (e Event) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// Observer receives lifecycle events. Returned errors (and panics) are
// isolated by the EventSource and never reach the caller.
type Observer interface {
	OnEvent(e Event) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event) error

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) error {
	return f(e)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

// OnEvent does nothing.
func (NoopObserver) OnEvent(Event) error { return nil }

// Compile-time check that NoopObserver implements Observer.
var _ Observer = NoopObserver{}

func startedEvent(md CallMetadata) Event {
	return Event{Type: EventStarted, Metadata: md}
}

func finishedEvent(md CallMetadata, d DurationMeasurement, result Result) Event {
	return Event{
		Type:            EventFinished,
		Metadata:        md,
		FinishTimestamp: time.Now().Round(0),
		Duration:        d.Elapsed(),
		Result:          &result,
	}
}

// resultFromError classifies a terminal error into an abort or error result.
func resultFromError(err error) Result {
	if IsAbort(err) {
		return Result{Status: StatusAbort}
	}
	return Result{Status: StatusError, Err: err}
}
