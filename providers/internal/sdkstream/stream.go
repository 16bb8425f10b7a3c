// Package sdkstream adapts provider SDK streams to core.DeltaStream.
package sdkstream

import (
	"context"

	"github.com/Borahm/modelfusion/core"
)

// Source is the iterator shape shared by the openai-go and anthropic-sdk-go
// server-sent event streams.
type Source[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// Stream is a core.DeltaStream over a Source.
type Stream[T any] struct {
	src    Source[T]
	mapErr func(error) error

	first   T
	pending bool
	last    *core.DeltaEvent[T]
}

// Open reads the first event of src so that request failures surface as an
// error here, where the caller's retry policy applies, instead of as the
// first stream event. mapErr translates SDK errors and may be nil.
func Open[T any](src Source[T], mapErr func(error) error) (*Stream[T], error) {
	if mapErr == nil {
		mapErr = func(err error) error { return err }
	}
	s := &Stream[T]{src: src, mapErr: mapErr}

	if src.Next() {
		s.first = src.Current()
		s.pending = true
		return s, nil
	}
	if err := src.Err(); err != nil {
		_ = src.Close()
		return nil, mapErr(err)
	}
	s.terminate(core.DeltaEnd[T]())
	return s, nil
}

// Recv implements core.DeltaStream.
func (s *Stream[T]) Recv(ctx context.Context) core.DeltaEvent[T] {
	if s.last != nil {
		return *s.last
	}
	if s.pending {
		s.pending = false
		return core.DeltaOf(s.first)
	}
	if err := ctx.Err(); err != nil {
		return s.terminate(core.DeltaErr[T](err))
	}
	if s.src.Next() {
		return core.DeltaOf(s.src.Current())
	}
	if err := s.src.Err(); err != nil {
		return s.terminate(core.DeltaErr[T](s.mapErr(err)))
	}
	return s.terminate(core.DeltaEnd[T]())
}

func (s *Stream[T]) terminate(e core.DeltaEvent[T]) core.DeltaEvent[T] {
	s.last = &e
	return e
}

// Close implements core.DeltaStream.
func (s *Stream[T]) Close() error {
	if s.last == nil {
		s.terminate(core.DeltaErr[T](core.ErrStreamClosed))
	}
	return s.src.Close()
}
