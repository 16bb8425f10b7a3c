package core

import (
	"fmt"
	"maps"
	"slices"
)

// ErrorHandler receives observer failures. It runs synchronously inside
// Notify and must not block.
type ErrorHandler func(err error)

// EventSource fans lifecycle events out to a fixed snapshot of observers.
// An observer that returns an error or panics is reported to the error
// handler; the remaining observers still receive the event.
type EventSource struct {
	observers    []Observer
	errorHandler ErrorHandler
}

// NewEventSource snapshots observers. Later changes to the passed slice, or
// to the global registry it may have come from, do not affect the source.
// A nil handler logs observer failures at warn level.
func NewEventSource(observers []Observer, handler ErrorHandler) *EventSource {
	snapshot := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			snapshot = append(snapshot, o)
		}
	}
	if handler == nil {
		handler = logObserverError
	}
	return &EventSource{observers: snapshot, errorHandler: handler}
}

// Notify delivers e to every observer in order. Each observer gets its own
// copy of the metadata settings.
func (s *EventSource) Notify(e Event) {
	for i, o := range s.observers {
		delivered := e
		delivered.Metadata.Settings = cloneSettings(e.Metadata.Settings)
		if err := notifyObserver(o, delivered); err != nil {
			s.handle(&ObserverError{
				Index:     i,
				EventType: e.Type,
				CallID:    e.Metadata.CallID,
				Err:       err,
			})
		}
	}
}

// Len returns the number of observers in the snapshot.
func (s *EventSource) Len() int {
	return len(s.observers)
}

func (s *EventSource) handle(err error) {
	defer func() {
		if r := recover(); r != nil {
			logger().Error("observer error handler panicked", "panic", r, "error", err)
		}
	}()
	s.errorHandler(err)
}

func notifyObserver(o Observer, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.OnEvent(e)
}

func cloneSettings(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := maps.Clone(m)
	for k, v := range c {
		if seqs, ok := v.([]string); ok {
			c[k] = slices.Clone(seqs)
		}
	}
	return c
}

func logObserverError(err error) {
	logger().Warn("observer failed", "error", err)
}
