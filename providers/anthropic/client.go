package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers/internal/normalize"
)

var errNoText = errors.New("response has no text content")

// GenerationModel performs single message requests.
// It implements core.TextGenerationModel.
type GenerationModel struct {
	base
}

var _ core.TextGenerationModel[core.InstructionPrompt, *anthropic.Message] = (*GenerationModel)(nil)

// WithSettings returns a copy of the model with s merged into its settings.
func (m *GenerationModel) WithSettings(s core.Settings) core.TextGenerationModel[core.InstructionPrompt, *anthropic.Message] {
	return &GenerationModel{base: m.with(s)}
}

// GenerateTextResponse sends one message request.
func (m *GenerationModel) GenerateTextResponse(ctx context.Context, prompt core.InstructionPrompt, opts core.CallOptions) (*anthropic.Message, error) {
	msg, err := m.client.Messages.New(ctx, buildParams(m.model, prompt, opts.Settings))
	if err != nil {
		return nil, mapError(err)
	}
	return msg, nil
}

// ExtractText concatenates the text blocks of the message.
func (m *GenerationModel) ExtractText(msg *anthropic.Message) (string, error) {
	if msg == nil {
		return "", normalize.DecodeError(ProviderName, errNoText)
	}

	var sb strings.Builder
	found := false
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", normalize.DecodeError(ProviderName, errNoText)
	}
	return sb.String(), nil
}
