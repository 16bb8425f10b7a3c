package anthropic

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Borahm/modelfusion/core"
)

// ExtraTopK is the core.Settings.Extra key for top-k sampling.
const ExtraTopK = "top_k"

func buildParams(model string, prompt core.InstructionPrompt, s core.Settings) anthropic.MessageNewParams {
	maxTokens := int64(DefaultMaxTokens)
	if s.MaxCompletionTokens > 0 {
		maxTokens = int64(s.MaxCompletionTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.Instruction)),
		},
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: prompt.System}}
	}
	if s.Temperature != nil {
		params.Temperature = anthropic.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = anthropic.Float(*s.TopP)
	}
	if stops := stopSequences(s.StopSequences); len(stops) > 0 {
		params.StopSequences = stops
	}
	switch k := s.Extra[ExtraTopK].(type) {
	case int:
		params.TopK = anthropic.Int(int64(k))
	case int64:
		params.TopK = anthropic.Int(k)
	}
	return params
}

// stopSequences drops whitespace-only sequences, which the API rejects.
func stopSequences(seqs []string) []string {
	out := make([]string, 0, len(seqs))
	for _, s := range seqs {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
