// Package lorem provides offline models that produce lorem ipsum text.
// They need no API key and are meant for development, demos and tests.
//
// The model name selects the streaming pace: names containing "slow" emit
// two words per second, "fast" about thirty, anything else ten.
package lorem

import (
	"strings"
	"time"

	"github.com/Borahm/modelfusion/core"
)

// ProviderName identifies the lorem backend in model information.
const ProviderName = "lorem"

// DefaultModel is used when no model is configured.
const DefaultModel = "lorem-medium"

// DefaultMaxWords is the output length when the settings carry no
// completion limit. Each word counts as one token.
const DefaultMaxWords = 50

// Stop reasons reported in Response.
const (
	StopReasonLength       = "max_tokens"
	StopReasonStopSequence = "stop_sequence"
)

// Config holds configuration for the lorem provider.
type Config struct {
	// Model is the model name. Defaults to DefaultModel.
	Model string

	// Delay overrides the per-word pace derived from the model name.
	Delay *time.Duration

	// Settings are the initial settings of every model handed out.
	Settings core.Settings
}

// Option configures the lorem provider.
type Option func(*Config)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithDelay sets the pause between streamed words. Zero streams without pausing.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		c.Delay = &d
	}
}

// WithSettings sets the initial model settings.
func WithSettings(s core.Settings) Option {
	return func(c *Config) {
		c.Settings = s.Clone()
	}
}

// Lorem hands out lorem ipsum models.
type Lorem struct {
	config Config
}

// New creates a lorem provider.
func New(opts ...Option) *Lorem {
	cfg := Config{Model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Lorem{config: cfg}
}

// StreamingModel returns a model that streams one word per delta.
func (p *Lorem) StreamingModel() *StreamingModel {
	return &StreamingModel{base: p.base()}
}

// GenerationModel returns a model that returns the whole text at once.
func (p *Lorem) GenerationModel() *GenerationModel {
	return &GenerationModel{base: p.base()}
}

func (p *Lorem) base() base {
	delay := streamDelay(p.config.Model)
	if p.config.Delay != nil {
		delay = *p.config.Delay
	}
	return base{model: p.config.Model, delay: delay, settings: p.config.Settings.Clone()}
}

// streamDelay returns the pause between words for a model name.
func streamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

type base struct {
	model    string
	delay    time.Duration
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
