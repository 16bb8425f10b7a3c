package anthropic

import (
	"net/http"

	"github.com/Borahm/modelfusion/core"
)

// Config holds configuration for the Anthropic provider.
type Config struct {
	// Model is the model name. Defaults to DefaultModel.
	Model string

	// BaseURL is the API base URL. Defaults to https://api.anthropic.com
	BaseURL string

	// HTTPClient is the HTTP client to use. Defaults to the SDK's client.
	HTTPClient *http.Client

	// Settings are the initial settings of every model handed out.
	Settings core.Settings
}

// Option configures the Anthropic provider.
type Option func(*Config)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithSettings sets the initial model settings.
func WithSettings(s core.Settings) Option {
	return func(c *Config) {
		c.Settings = s.Clone()
	}
}
