package openai

import (
	"context"

	"github.com/openai/openai-go"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers/internal/sdkstream"
)

// StreamingModel streams chat completion chunks.
// It implements core.TextStreamingModel.
type StreamingModel struct {
	base
}

var _ core.TextStreamingModel[core.InstructionPrompt, openai.ChatCompletionChunk] = (*StreamingModel)(nil)

// WithSettings returns a copy of the model with s merged into its settings.
func (m *StreamingModel) WithSettings(s core.Settings) core.TextStreamingModel[core.InstructionPrompt, openai.ChatCompletionChunk] {
	return &StreamingModel{base: m.with(s)}
}

// GenerateDeltaStreamResponse opens a streaming chat completion.
// The request is sent, and its first chunk read, before it returns.
func (m *StreamingModel) GenerateDeltaStreamResponse(ctx context.Context, prompt core.InstructionPrompt, opts core.CallOptions) (core.DeltaStream[openai.ChatCompletionChunk], error) {
	params := buildParams(m.model, prompt, opts.Settings)
	src := m.client.Chat.Completions.NewStreaming(ctx, params)

	stream, err := sdkstream.Open[openai.ChatCompletionChunk](src, mapError)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// ExtractTextDelta returns the content of the chunk's first choice.
func (m *StreamingModel) ExtractTextDelta(chunk openai.ChatCompletionChunk) (string, bool) {
	if len(chunk.Choices) == 0 {
		return "", false
	}
	text := chunk.Choices[0].Delta.Content
	return text, text != ""
}
