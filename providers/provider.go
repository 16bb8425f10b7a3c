// Package providers contains backend adapters for modelfusion.
//
// Each provider is implemented in its own subpackage (e.g., providers/openai,
// providers/anthropic) and exposes typed core.TextStreamingModel and
// core.TextGenerationModel values. Importing a subpackage also registers a
// Factory, so callers that pick a provider by name at runtime can use:
//
//	backend, err := providers.Create("openai", providers.Config{
//	    APIKey: core.Secret(key),
//	    Model:  "gpt-4o-mini",
//	})
//	stream, err := backend.StreamText(ctx, core.InstructionPrompt{Instruction: "Hi"})
//
// # Concurrency
//
// Models and backends are safe for concurrent calls.
package providers

import (
	"context"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/middleware"
)

// Config configures a backend created through the registry.
type Config struct {
	APIKey  core.Secret
	Model   string
	BaseURL string

	// Settings are merged into the provider model's settings.
	Settings core.Settings

	// Breaker, if set, guards both backend operations.
	Breaker *middleware.Breaker
}

// Backend is a configured provider model with its SDK types hidden.
type Backend interface {
	ModelInformation() core.ModelInformation
	StreamText(ctx context.Context, prompt core.InstructionPrompt, opts ...core.FunctionOption) (*core.TextStream, error)
	GenerateText(ctx context.Context, prompt core.InstructionPrompt, opts ...core.FunctionOption) (string, error)
}

// NewBackend pairs a streaming and a generation model of one provider.
// When breaker is non-nil both models share it.
func NewBackend[D, R any](
	stream core.TextStreamingModel[core.InstructionPrompt, D],
	generate core.TextGenerationModel[core.InstructionPrompt, R],
	breaker *middleware.Breaker,
) Backend {
	if breaker != nil {
		stream = middleware.CircuitBreakerStreaming(stream, breaker)
		generate = middleware.CircuitBreakerGeneration(generate, breaker)
	}
	return &backend[D, R]{stream: stream, generate: generate}
}

type backend[D, R any] struct {
	stream   core.TextStreamingModel[core.InstructionPrompt, D]
	generate core.TextGenerationModel[core.InstructionPrompt, R]
}

func (b *backend[D, R]) ModelInformation() core.ModelInformation {
	return b.stream.ModelInformation()
}

func (b *backend[D, R]) StreamText(ctx context.Context, prompt core.InstructionPrompt, opts ...core.FunctionOption) (*core.TextStream, error) {
	return core.StreamText(ctx, b.stream, prompt, opts...)
}

func (b *backend[D, R]) GenerateText(ctx context.Context, prompt core.InstructionPrompt, opts ...core.FunctionOption) (string, error) {
	return core.GenerateText(ctx, b.generate, prompt, opts...)
}
