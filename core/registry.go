package core

import "sync"

// The process-wide registry holds default observers and the default
// function-call logging mode. Orchestrators read it exactly once, when an
// invocation builds its EventSource.
var registry struct {
	mu        sync.RWMutex
	observers []Observer
	logging   LogMode
}

// SetGlobalObservers replaces the process-wide default observers.
// In-flight invocations keep the snapshot they started with.
func SetGlobalObservers(observers ...Observer) {
	cp := make([]Observer, len(observers))
	copy(cp, observers)

	registry.mu.Lock()
	registry.observers = cp
	registry.mu.Unlock()
}

// GlobalObservers returns a copy of the process-wide default observers.
func GlobalObservers() []Observer {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	cp := make([]Observer, len(registry.observers))
	copy(cp, registry.observers)
	return cp
}

// SetGlobalLogging sets the default function-call logging mode.
func SetGlobalLogging(mode LogMode) {
	registry.mu.Lock()
	registry.logging = mode
	registry.mu.Unlock()
}

// GlobalLogging returns the default function-call logging mode.
func GlobalLogging() LogMode {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if registry.logging == "" {
		return LogOff
	}
	return registry.logging
}

// observerSnapshot assembles the observers for one invocation, in order:
// call logging, global observers, settings observers, run observer, and
// per-call observers.
func observerSnapshot(o *functionOptions, settings Settings) []Observer {
	mode := GlobalLogging()
	if o.logging != nil {
		mode = *o.logging
	}

	observers := FunctionCallLogger(mode, logger())
	observers = append(observers, GlobalObservers()...)
	observers = append(observers, settings.Observers...)
	if o.run != nil && o.run.Observer != nil {
		observers = append(observers, o.run.Observer)
	}
	observers = append(observers, o.observers...)
	return observers
}
