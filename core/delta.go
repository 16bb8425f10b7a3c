package core

import (
	"context"
	"sync"
)

// DeltaKind is the variant of a DeltaEvent.
type DeltaKind int

const (
	// DeltaKindDelta carries one full delta from the backend.
	DeltaKindDelta DeltaKind = iota + 1
	// DeltaKindError ends the stream with an error.
	DeltaKindError
	// DeltaKindEnd ends the stream normally.
	DeltaKindEnd
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaKindDelta:
		return "delta"
	case DeltaKindError:
		return "error"
	case DeltaKindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// DeltaEvent is one element of a backend stream. Build values with
// DeltaOf, DeltaErr and DeltaEnd; the zero value is invalid.
type DeltaEvent[D any] struct {
	kind      DeltaKind
	fullDelta D
	err       error
}

// DeltaOf wraps a full delta.
func DeltaOf[D any](fullDelta D) DeltaEvent[D] {
	return DeltaEvent[D]{kind: DeltaKindDelta, fullDelta: fullDelta}
}

// DeltaErr ends a stream with err.
func DeltaErr[D any](err error) DeltaEvent[D] {
	return DeltaEvent[D]{kind: DeltaKindError, err: err}
}

// DeltaEnd ends a stream normally.
func DeltaEnd[D any]() DeltaEvent[D] {
	return DeltaEvent[D]{kind: DeltaKindEnd}
}

// Kind returns the variant.
func (e DeltaEvent[D]) Kind() DeltaKind { return e.kind }

// FullDelta returns the delta of a DeltaKindDelta event.
func (e DeltaEvent[D]) FullDelta() D { return e.fullDelta }

// Err returns the error of a DeltaKindError event.
func (e DeltaEvent[D]) Err() error { return e.err }

// Terminal reports whether e ends its stream.
func (e DeltaEvent[D]) Terminal() bool {
	return e.kind == DeltaKindError || e.kind == DeltaKindEnd
}

// DeltaStream is a pull-based backend stream. Recv blocks until the next
// event is available or ctx is done, in which case it returns a
// DeltaKindError event carrying the context error. After a terminal event,
// Recv keeps returning that event. Close releases backend resources and is
// safe to call more than once.
type DeltaStream[D any] interface {
	Recv(ctx context.Context) DeltaEvent[D]
	Close() error
}

// SliceDeltaStream replays a fixed list of events, followed by DeltaEnd
// unless the list already ends in a terminal event.
type SliceDeltaStream[D any] struct {
	events []DeltaEvent[D]
	pos    int
	last   *DeltaEvent[D]
	closed bool
}

// NewSliceDeltaStream returns a stream over events.
func NewSliceDeltaStream[D any](events ...DeltaEvent[D]) *SliceDeltaStream[D] {
	return &SliceDeltaStream[D]{events: events}
}

// NewDeltaStreamOf returns a stream yielding one delta per argument.
func NewDeltaStreamOf[D any](deltas ...D) *SliceDeltaStream[D] {
	events := make([]DeltaEvent[D], len(deltas))
	for i, d := range deltas {
		events[i] = DeltaOf(d)
	}
	return NewSliceDeltaStream(events...)
}

// Recv implements DeltaStream.
func (s *SliceDeltaStream[D]) Recv(ctx context.Context) DeltaEvent[D] {
	if s.last != nil {
		return *s.last
	}
	if s.closed {
		return s.terminate(DeltaErr[D](ErrStreamClosed))
	}
	if err := ctx.Err(); err != nil {
		return s.terminate(DeltaErr[D](err))
	}
	if s.pos >= len(s.events) {
		return s.terminate(DeltaEnd[D]())
	}
	e := s.events[s.pos]
	s.pos++
	if e.Terminal() {
		return s.terminate(e)
	}
	return e
}

func (s *SliceDeltaStream[D]) terminate(e DeltaEvent[D]) DeltaEvent[D] {
	s.last = &e
	return e
}

// Close implements DeltaStream.
func (s *SliceDeltaStream[D]) Close() error {
	s.closed = true
	return nil
}

// ChannelDeltaStream adapts a push-style backend that delivers events on a
// channel. A closed channel is read as DeltaEnd.
type ChannelDeltaStream[D any] struct {
	ch      <-chan DeltaEvent[D]
	release func()
	once    sync.Once
	last    *DeltaEvent[D]
}

// NewChannelDeltaStream wraps ch. release is called once by Close and
// should stop the producer (typically a context.CancelFunc).
func NewChannelDeltaStream[D any](ch <-chan DeltaEvent[D], release func()) *ChannelDeltaStream[D] {
	return &ChannelDeltaStream[D]{ch: ch, release: release}
}

// Recv implements DeltaStream.
func (s *ChannelDeltaStream[D]) Recv(ctx context.Context) DeltaEvent[D] {
	if s.last != nil {
		return *s.last
	}
	select {
	case <-ctx.Done():
		return s.terminate(DeltaErr[D](ctx.Err()))
	case e, ok := <-s.ch:
		if !ok {
			return s.terminate(DeltaEnd[D]())
		}
		if e.Terminal() {
			return s.terminate(e)
		}
		return e
	}
}

func (s *ChannelDeltaStream[D]) terminate(e DeltaEvent[D]) DeltaEvent[D] {
	s.last = &e
	return e
}

// Close implements DeltaStream.
func (s *ChannelDeltaStream[D]) Close() error {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
	return nil
}
