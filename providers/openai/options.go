package openai

import (
	"net/http"

	"github.com/Borahm/modelfusion/core"
)

// Config holds configuration for the OpenAI provider.
type Config struct {
	// Model is the chat model name. Defaults to DefaultModel.
	Model string

	// BaseURL overrides the API base URL, e.g. for OpenAI-compatible servers.
	// It must end with a slash.
	BaseURL string

	// HTTPClient is the HTTP client to use. Defaults to the SDK's client.
	HTTPClient *http.Client

	// Settings are the initial settings of every model handed out.
	Settings core.Settings
}

// Option configures the OpenAI provider.
type Option func(*Config)

// WithModel sets the chat model name.
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
