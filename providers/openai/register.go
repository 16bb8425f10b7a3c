package openai

import (
	"github.com/openai/openai-go"

	"github.com/Borahm/modelfusion/providers"
)

func init() {
	providers.Register(ProviderName, func(cfg providers.Config) (providers.Backend, error) {
		if cfg.APIKey.IsEmpty() {
			return nil, ErrAPIKeyNotFound
		}
		p := New(cfg.APIKey.Expose(),
			WithModel(cfg.Model),
			WithBaseURL(cfg.BaseURL),
			WithSettings(cfg.Settings),
		)
		return providers.NewBackend[openai.ChatCompletionChunk, *openai.ChatCompletion](p.StreamingModel(), p.GenerationModel(), cfg.Breaker), nil
	})
}
