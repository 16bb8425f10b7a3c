// Package anthropic provides text streaming and text generation models
// backed by the Anthropic Messages API through anthropic-sdk-go.
package anthropic

import (
	"errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Borahm/modelfusion/core"
)

// ProviderName identifies Anthropic in model information and errors.
const ProviderName = "anthropic"

// DefaultAPIKeyEnvVar is the environment variable name for the Anthropic API key.
const DefaultAPIKeyEnvVar = "ANTHROPIC_API_KEY"

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-latest"

// DefaultMaxTokens is sent when the settings carry no completion limit.
// The Messages API requires one.
const DefaultMaxTokens = 4096

// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
var ErrAPIKeyNotFound = errors.New("anthropic: ANTHROPIC_API_KEY environment variable not set")

// Anthropic holds a configured SDK client and hands out models that share it.
// Anthropic is safe for concurrent use.
type Anthropic struct {
	client *anthropic.Client
	config Config
}

// New creates an Anthropic provider with the given API key and options.
func New(apiKey string, opts ...Option) *Anthropic {
	cfg := Config{Model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := anthropic.NewClient(reqOpts...)
	return &Anthropic{client: &client, config: cfg}
}

// NewFromClient wraps an existing SDK client. Only the Model and Settings
// options apply; transport options are the client's own.
func NewFromClient(client *anthropic.Client, opts ...Option) *Anthropic {
	cfg := Config{Model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Anthropic{client: client, config: cfg}
}

// NewFromEnv creates an Anthropic provider using the ANTHROPIC_API_KEY environment variable.
func NewFromEnv(opts ...Option) (*Anthropic, error) {
	apiKey := os.Getenv(DefaultAPIKeyEnvVar)
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}
	return New(apiKey, opts...), nil
}

// StreamingModel returns a text streaming model for the configured model name.
func (p *Anthropic) StreamingModel() *StreamingModel {
	return &StreamingModel{base: p.base()}
}

// GenerationModel returns a text generation model for the configured model name.
func (p *Anthropic) GenerationModel() *GenerationModel {
	return &GenerationModel{base: p.base()}
}

func (p *Anthropic) base() base {
	return base{client: p.client, model: p.config.Model, settings: p.config.Settings.Clone()}
}

type base struct {
	client   *anthropic.Client
	model    string
	settings core.Settings
}

func (b base) ModelInformation() core.ModelInformation {
	return core.ModelInformation{Provider: ProviderName, ModelName: b.model}
}

func (b base) Settings() core.Settings {
	return b.settings.Clone()
}

func (b base) with(s core.Settings) base {
	b.settings = b.settings.Merge(s)
	return b
}
