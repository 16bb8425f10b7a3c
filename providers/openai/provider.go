// Package openai provides text streaming and text generation models backed
// by the OpenAI Chat Completions API through the official openai-go SDK.
package openai

import (
	"errors"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Borahm/modelfusion/core"
)

// ProviderName identifies OpenAI in model information and errors.
const ProviderName = "openai"

// DefaultAPIKeyEnvVar is the environment variable name for the OpenAI API key.
const DefaultAPIKeyEnvVar = "OPENAI_API_KEY"

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
var ErrAPIKeyNotFound = errors.New("openai: OPENAI_API_KEY environment variable not set")

// OpenAI holds a configured SDK client and hands out models that share it.
// OpenAI is safe for concurrent use.
type OpenAI struct {
	client *openai.Client
	config Config
}

// New creates an OpenAI provider with the given API key and options.
//
// SDK-level retries are disabled; retries are governed by the model's
// core.RetryPolicy instead.
func New(apiKey string, opts ...Option) *OpenAI {
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

	client := openai.NewClient(reqOpts...)
	return &OpenAI{client: &client, config: cfg}
}

// NewFromClient wraps an existing SDK client. Only the Model and Settings
// options apply; transport options are the client's own.
func NewFromClient(client *openai.Client, opts ...Option) *OpenAI {
	cfg := Config{Model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAI{client: client, config: cfg}
}

// NewFromEnv creates an OpenAI provider using the OPENAI_API_KEY environment variable.
//
//	provider, err := openai.NewFromEnv(openai.WithModel("gpt-4o"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := core.GenerateText(ctx, provider.GenerationModel(), prompt)
func NewFromEnv(opts ...Option) (*OpenAI, error) {
	apiKey := os.Getenv(DefaultAPIKeyEnvVar)
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}
	return New(apiKey, opts...), nil
}

// StreamingModel returns a text streaming model for the configured model name.
func (p *OpenAI) StreamingModel() *StreamingModel {
	return &StreamingModel{base: p.base()}
}

// GenerationModel returns a text generation model for the configured model name.
func (p *OpenAI) GenerationModel() *GenerationModel {
	return &GenerationModel{base: p.base()}
}

func (p *OpenAI) base() base {
	return base{
		client:   p.client,
		model:    p.config.Model,
		settings: p.config.Settings.Clone(),
	}
}

// base is shared by the streaming and generation models.
type base struct {
	client   *openai.Client
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
