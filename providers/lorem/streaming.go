package lorem

import (
	"context"
	"time"

	"github.com/Borahm/modelfusion/core"
)

// StreamingModel streams lorem ipsum one word at a time.
// It implements core.TextStreamingModel.
type StreamingModel struct {
	base
}

var _ core.TextStreamingModel[string, string] = (*StreamingModel)(nil)

// WithSettings returns a copy of the model with s merged into its settings.
func (m *StreamingModel) WithSettings(s core.Settings) core.TextStreamingModel[string, string] {
	return &StreamingModel{base: m.with(s)}
}

// GenerateDeltaStreamResponse starts a producer goroutine that stops when
// ctx is cancelled or the stream is closed.
func (m *StreamingModel) GenerateDeltaStreamResponse(ctx context.Context, _ string, opts core.CallOptions) (core.DeltaStream[string], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frags := fragments(generate(opts.Settings).Text)

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan core.DeltaEvent[string])
	go func() {
		defer close(ch)
		for i, frag := range frags {
			if i > 0 && m.delay > 0 {
				timer := time.NewTimer(m.delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}
			select {
			case ch <- core.DeltaOf(frag):
			case <-ctx.Done():
				return
			}
		}
	}()
	return core.NewChannelDeltaStream(ch, cancel), nil
}

// ExtractTextDelta returns the word itself.
func (m *StreamingModel) ExtractTextDelta(word string) (string, bool) {
	return word, word != ""
}
