package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"

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
		return providers.NewBackend[anthropic.MessageStreamEventUnion, *anthropic.Message](p.StreamingModel(), p.GenerationModel(), cfg.Breaker), nil
	})
}
