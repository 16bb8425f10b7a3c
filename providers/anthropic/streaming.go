package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers/internal/sdkstream"
)

// StreamingModel streams Messages API events.
// It implements core.TextStreamingModel.
type StreamingModel struct {
	base
}

var _ core.TextStreamingModel[core.InstructionPrompt, anthropic.MessageStreamEventUnion] = (*StreamingModel)(nil)

// WithSettings returns a copy of the model with s merged into its settings.
func (m *StreamingModel) WithSettings(s core.Settings) core.TextStreamingModel[core.InstructionPrompt, anthropic.MessageStreamEventUnion] {
	return &StreamingModel{base: m.with(s)}
}

// GenerateDeltaStreamResponse opens a streaming message request and reads
// its first event before returning.
func (m *StreamingModel) GenerateDeltaStreamResponse(ctx context.Context, prompt core.InstructionPrompt, opts core.CallOptions) (core.DeltaStream[anthropic.MessageStreamEventUnion], error) {
	src := m.client.Messages.NewStreaming(ctx, buildParams(m.model, prompt, opts.Settings))

	stream, err := sdkstream.Open[anthropic.MessageStreamEventUnion](src, mapError)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// ExtractTextDelta returns the text of content_block_delta events.
// Every other event type carries no text.
func (m *StreamingModel) ExtractTextDelta(event anthropic.MessageStreamEventUnion) (string, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
			return e.Delta.Text, true
		}
	}
	return "", false
}
