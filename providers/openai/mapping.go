package openai

import (
	"github.com/openai/openai-go"

	"github.com/Borahm/modelfusion/core"
)

// Keys of core.Settings.Extra understood by this provider.
const (
	ExtraFrequencyPenalty = "frequency_penalty"
	ExtraPresencePenalty  = "presence_penalty"
	ExtraSeed             = "seed"
	ExtraUser             = "user"
)

// buildParams maps an instruction prompt and settings to a chat completion request.
func buildParams(model string, prompt core.InstructionPrompt, s core.Settings) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.Instruction))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if s.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(s.MaxCompletionTokens))
	}
	if s.Temperature != nil {
		params.Temperature = openai.Float(*s.Temperature)
	}
	if s.TopP != nil {
		params.TopP = openai.Float(*s.TopP)
	}
	if len(s.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: s.StopSequences}
	}

	if v, ok := floatExtra(s.Extra, ExtraFrequencyPenalty); ok {
		params.FrequencyPenalty = openai.Float(v)
	}
	if v, ok := floatExtra(s.Extra, ExtraPresencePenalty); ok {
		params.PresencePenalty = openai.Float(v)
	}
	if v, ok := intExtra(s.Extra, ExtraSeed); ok {
		params.Seed = openai.Int(v)
	}
	if v, ok := s.Extra[ExtraUser].(string); ok && v != "" {
		params.User = openai.String(v)
	}
	return params
}

func floatExtra(extra map[string]any, key string) (float64, bool) {
	switch v := extra[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intExtra(extra map[string]any, key string) (int64, bool) {
	switch v := extra[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
