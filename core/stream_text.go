package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
)

// StreamText invokes a streaming backend and returns a lazy stream of text
// fragments.
//
// A started event is emitted before the backend is called. Obtaining the
// backend stream goes through CallWithRetryAndThrottle with the model's
// retry and throttle policies; if that fails, a finished event is emitted
// and the error is returned. Otherwise the returned TextStream reads the
// backend only when the caller asks for the next fragment, and emits the
// finished event when the stream ends, fails, is cancelled or is closed.
//
// Cancellation errors are returned as *AbortError.
func StreamText[P, D any](
	ctx context.Context,
	model TextStreamingModel[P, D],
	prompt P,
	opts ...FunctionOption,
) (*TextStream, error) {
	o := newFunctionOptions(opts)
	if o.settings != nil {
		model = model.WithSettings(*o.settings)
	}
	settings := model.Settings().Clone()

	events := NewEventSource(observerSnapshot(o, settings), o.errorHandler())
	duration := StartDurationMeasurement()
	metadata := o.newCallMetadata(FunctionTextStreaming, model.ModelInformation(), settings, prompt, duration)

	events.Notify(startedEvent(metadata))

	deltas, err := CallWithRetryAndThrottle(ctx, func(ctx context.Context) (DeltaStream[D], error) {
		return model.GenerateDeltaStreamResponse(ctx, prompt, o.callOptions(settings.Clone()))
	}, settings.Retry, settings.Throttle)
	if err != nil {
		err = abortFor(ctx, err)
		events.Notify(finishedEvent(metadata, duration, resultFromError(err)))
		return nil, err
	}

	return &TextStream{
		ctx:      ctx,
		src:      &deltaSource[D]{stream: deltas, extract: model.ExtractTextDelta},
		events:   events,
		metadata: metadata,
		duration: duration,
	}, nil
}

type streamState int

const (
	streamStreaming streamState = iota
	streamFinished
	streamClosed
)

// TextStream is the caller's view of a streaming invocation. Fragments are
// pulled with Next and read with Text:
//
//	for stream.Next() {
//	    fmt.Print(stream.Text())
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// Empty fragments are never returned. A TextStream is not safe for
// concurrent use; cancel the invocation context to stop it from another
// goroutine. Close releases the backend stream. Closing before the end is
// reported to observers as an abort.
type TextStream struct {
	ctx      context.Context
	src      textSource
	events   *EventSource
	metadata CallMetadata
	duration DurationMeasurement

	state  streamState
	output strings.Builder
	text   string
	err    error

	finishOnce sync.Once
	closeOnce  sync.Once
	closeErr   error
}

// Next advances to the next non-empty fragment. It returns false when the
// stream has ended, failed or been closed.
func (s *TextStream) Next() bool {
	if s.state != streamStreaming {
		return false
	}
	s.text = ""

	if s.ctx.Err() != nil {
		s.fail(NewAbortError(s.ctx))
		return false
	}

	text, done, err := s.src.next(s.ctx)
	switch {
	case err != nil:
		s.fail(err)
		return false
	case done:
		s.state = streamFinished
		s.release()
		s.finish(Result{
			Status:   StatusSuccess,
			Output:   s.output.String(),
			Response: s.src.lastResponse(),
		})
		return false
	default:
		s.output.WriteString(text)
		s.text = text
		return true
	}
}

// Text returns the fragment read by the last successful Next.
func (s *TextStream) Text() string {
	return s.text
}

// Err returns the error that ended the stream, or nil if it ended normally
// or was closed by the caller.
func (s *TextStream) Err() error {
	return s.err
}

// Output returns all fragments read so far, concatenated.
func (s *TextStream) Output() string {
	return s.output.String()
}

// Metadata returns the invocation metadata shared by its lifecycle events.
func (s *TextStream) Metadata() CallMetadata {
	md := s.metadata
	md.Settings = cloneSettings(md.Settings)
	return md
}

// Close releases the backend stream. If the stream had not finished, a
// finished event with an abort result is emitted. Close is idempotent.
func (s *TextStream) Close() error {
	if s.state == streamStreaming {
		s.state = streamClosed
		s.release()
		s.finish(Result{Status: StatusAbort})
	}
	return s.closeErr
}

// All returns an iterator over the remaining fragments. A non-nil error is
// yielded once, last. Breaking out of the loop closes the stream.
func (s *TextStream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Text(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield("", err)
		}
	}
}

// Drain reads the stream to the end and returns the accumulated text.
func (s *TextStream) Drain() (string, error) {
	defer s.Close()
	for s.Next() {
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return s.Output(), nil
}

func (s *TextStream) fail(err error) {
	err = abortFor(s.ctx, err)
	s.err = err
	s.state = streamFinished
	s.release()
	s.finish(resultFromError(err))
}

func (s *TextStream) release() {
	s.closeOnce.Do(func() {
		s.closeErr = s.src.close()
	})
}

func (s *TextStream) finish(result Result) {
	s.finishOnce.Do(func() {
		s.events.Notify(finishedEvent(s.metadata, s.duration, result))
	})
}

// textSource hides the backend delta type from TextStream.
type textSource interface {
	// next returns the next non-empty fragment, done at the end of the
	// stream, or the error that ended it.
	next(ctx context.Context) (text string, done bool, err error)
	lastResponse() any
	close() error
}

type deltaSource[D any] struct {
	stream  DeltaStream[D]
	extract func(D) (string, bool)

	last    D
	hasLast bool
}

var errMissingStreamError = errors.New("backend stream failed without an error")

func (s *deltaSource[D]) next(ctx context.Context) (string, bool, error) {
	for {
		e := s.stream.Recv(ctx)
		switch e.Kind() {
		case DeltaKindDelta:
			s.last = e.FullDelta()
			s.hasLast = true
			if text, ok := s.extract(s.last); ok && text != "" {
				return text, false, nil
			}
		case DeltaKindError:
			if e.Err() == nil {
				return "", false, errMissingStreamError
			}
			return "", false, e.Err()
		case DeltaKindEnd:
			return "", true, nil
		default:
			return "", false, fmt.Errorf("invalid delta event kind %d", e.Kind())
		}

		// Skipped an empty delta; honour cancellation before reading on.
		if ctx.Err() != nil {
			return "", false, NewAbortError(ctx)
		}
	}
}

func (s *deltaSource[D]) lastResponse() any {
	if !s.hasLast {
		return nil
	}
	return s.last
}

func (s *deltaSource[D]) close() error {
	return s.stream.Close()
}
