package core

import (
	"context"
	"slices"
)

// PromptFormat maps a caller-facing prompt type I to a backend prompt type P.
type PromptFormat[I, P any] interface {
	Format(prompt I) P

	// StopSequences are added to the model's stop sequences.
	StopSequences() []string
}

// PromptFormatFunc adapts a function to PromptFormat with no stop sequences.
type PromptFormatFunc[I, P any] func(prompt I) P

// Format calls f(prompt).
func (f PromptFormatFunc[I, P]) Format(prompt I) P { return f(prompt) }

// StopSequences returns nil.
func (f PromptFormatFunc[I, P]) StopSequences() []string { return nil }

// InstructionPrompt is a system message plus a single instruction.
type InstructionPrompt struct {
	System      string
	Instruction string
}

// TextInstructionFormat renders an InstructionPrompt as plain text for
// completion-style backends.
func TextInstructionFormat() PromptFormat[InstructionPrompt, string] {
	return PromptFormatFunc[InstructionPrompt, string](func(p InstructionPrompt) string {
		if p.System == "" {
			return p.Instruction
		}
		return p.System + "\n\n" + p.Instruction
	})
}

func withFormatStops(s Settings, stops []string) Settings {
	if len(stops) == 0 {
		return Settings{}
	}
	merged := slices.Clone(s.StopSequences)
	for _, stop := range stops {
		if !slices.Contains(merged, stop) {
			merged = append(merged, stop)
		}
	}
	return Settings{StopSequences: merged}
}

// WithPromptFormat returns a streaming model that accepts prompts of type I.
// The original model is not modified.
func WithPromptFormat[I, P, D any](model TextStreamingModel[P, D], format PromptFormat[I, P]) TextStreamingModel[I, D] {
	return &formattedStreamingModel[I, P, D]{
		model:  model.WithSettings(withFormatStops(model.Settings(), format.StopSequences())),
		format: format,
	}
}

type formattedStreamingModel[I, P, D any] struct {
	model  TextStreamingModel[P, D]
	format PromptFormat[I, P]
}

func (m *formattedStreamingModel[I, P, D]) ModelInformation() ModelInformation {
	return m.model.ModelInformation()
}

func (m *formattedStreamingModel[I, P, D]) Settings() Settings {
	return m.model.Settings()
}

func (m *formattedStreamingModel[I, P, D]) WithSettings(s Settings) TextStreamingModel[I, D] {
	return &formattedStreamingModel[I, P, D]{model: m.model.WithSettings(s), format: m.format}
}

func (m *formattedStreamingModel[I, P, D]) GenerateDeltaStreamResponse(ctx context.Context, prompt I, opts CallOptions) (DeltaStream[D], error) {
	return m.model.GenerateDeltaStreamResponse(ctx, m.format.Format(prompt), opts)
}

func (m *formattedStreamingModel[I, P, D]) ExtractTextDelta(fullDelta D) (string, bool) {
	return m.model.ExtractTextDelta(fullDelta)
}

// WithGenerationPromptFormat is WithPromptFormat for single-shot models.
func WithGenerationPromptFormat[I, P, R any](model TextGenerationModel[P, R], format PromptFormat[I, P]) TextGenerationModel[I, R] {
	return &formattedGenerationModel[I, P, R]{
		model:  model.WithSettings(withFormatStops(model.Settings(), format.StopSequences())),
		format: format,
	}
}

type formattedGenerationModel[I, P, R any] struct {
	model  TextGenerationModel[P, R]
	format PromptFormat[I, P]
}

func (m *formattedGenerationModel[I, P, R]) ModelInformation() ModelInformation {
	return m.model.ModelInformation()
}

func (m *formattedGenerationModel[I, P, R]) Settings() Settings {
	return m.model.Settings()
}

func (m *formattedGenerationModel[I, P, R]) WithSettings(s Settings) TextGenerationModel[I, R] {
	return &formattedGenerationModel[I, P, R]{model: m.model.WithSettings(s), format: m.format}
}

func (m *formattedGenerationModel[I, P, R]) GenerateTextResponse(ctx context.Context, prompt I, opts CallOptions) (R, error) {
	return m.model.GenerateTextResponse(ctx, m.format.Format(prompt), opts)
}

func (m *formattedGenerationModel[I, P, R]) ExtractText(response R) (string, error) {
	return m.model.ExtractText(response)
}
