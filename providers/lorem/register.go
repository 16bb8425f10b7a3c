package lorem

import (
	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers"
)

func init() {
	providers.Register(ProviderName, func(cfg providers.Config) (providers.Backend, error) {
		p := New(WithModel(cfg.Model), WithSettings(cfg.Settings))
		format := core.TextInstructionFormat()
		return providers.NewBackend[string, Response](
			core.WithPromptFormat[core.InstructionPrompt, string, string](p.StreamingModel(), format),
			core.WithGenerationPromptFormat[core.InstructionPrompt, string, Response](p.GenerationModel(), format),
			cfg.Breaker,
		), nil
	})
}
