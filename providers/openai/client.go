package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers/internal/normalize"
)

var errNoChoices = errors.New("response has no choices")

// GenerationModel performs single chat completion requests.
// It implements core.TextGenerationModel.
type GenerationModel struct {
	base
}

var _ core.TextGenerationModel[core.InstructionPrompt, *openai.ChatCompletion] = (*GenerationModel)(nil)

// WithSettings returns a copy of the model with s merged into its settings.
func (m *GenerationModel) WithSettings(s core.Settings) core.TextGenerationModel[core.InstructionPrompt, *openai.ChatCompletion] {
	return &GenerationModel{base: m.with(s)}
}

// GenerateTextResponse sends one chat completion request.
func (m *GenerationModel) GenerateTextResponse(ctx context.Context, prompt core.InstructionPrompt, opts core.CallOptions) (*openai.ChatCompletion, error) {
	resp, err := m.client.Chat.Completions.New(ctx, buildParams(m.model, prompt, opts.Settings))
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

// ExtractText returns the message content of the first choice.
func (m *GenerationModel) ExtractText(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", normalize.DecodeError(ProviderName, errNoChoices)
	}
	return resp.Choices[0].Message.Content, nil
}
