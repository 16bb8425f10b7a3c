package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Borahm/modelfusion/cli/config"
	"github.com/Borahm/modelfusion/cli/credentials"
	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers"
	"github.com/Borahm/modelfusion/providers/lorem"
)

// memoryStore implements credentials.Store in memory.
type memoryStore map[string]string

func (m memoryStore) Set(name, value string) error { m[name] = value; return nil }
func (m memoryStore) Get(name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", &credentials.NotFoundError{Name: name}
	}
	return v, nil
}
func (m memoryStore) Delete(name string) error {
	if _, ok := m[name]; !ok {
		return &credentials.NotFoundError{Name: name}
	}
	delete(m, name)
	return nil
}
func (m memoryStore) List() ([]string, error) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// failingBackend returns err from every call.
type failingBackend struct{ err error }

func (b failingBackend) ModelInformation() core.ModelInformation {
	return core.ModelInformation{Provider: "openai", ModelName: "fake"}
}
func (b failingBackend) StreamText(context.Context, core.InstructionPrompt, ...core.FunctionOption) (*core.TextStream, error) {
	return nil, b.err
}
func (b failingBackend) GenerateText(context.Context, core.InstructionPrompt, ...core.FunctionOption) (string, error) {
	return "", b.err
}

// instantLorem builds lorem backends without the per-word delay.
func instantLorem(name string, cfg providers.Config) (providers.Backend, error) {
	p := lorem.New(lorem.WithModel(cfg.Model), lorem.WithDelay(0), lorem.WithSettings(cfg.Settings))
	format := core.TextInstructionFormat()
	return providers.NewBackend[string, lorem.Response](
		core.WithPromptFormat[core.InstructionPrompt, string, string](p.StreamingModel(), format),
		core.WithGenerationPromptFormat[core.InstructionPrompt, string, lorem.Response](p.GenerationModel(), format),
		cfg.Breaker,
	), nil
}

type testApp struct {
	*App
	stdout, stderr *bytes.Buffer
	store          memoryStore
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...AppOption) *testApp {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{Providers: map[string]config.ProviderConfig{}}
	}
	ta := &testApp{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, store: memoryStore{}}
	base := []AppOption{
		WithConfigLoader(func(string) (*config.Config, error) { return cfg, nil }),
		WithBackendFactory(instantLorem),
		WithStoreFactory(func() (credentials.Store, error) { return ta.store, nil }),
		WithGetenv(func(string) string { return "" }),
		WithIO(strings.NewReader(""), ta.stdout, ta.stderr),
	}
	ta.App = NewApp(append(base, opts...)...)
	t.Cleanup(func() {
		core.SetLogger(nil)
		core.SetGlobalLogging(core.LogOff)
	})
	return ta
}

func (ta *testApp) run(ctx context.Context, args ...string) error {
	ta.SetArgs(append(args, "--env-file", ""))
	return ta.Execute(ctx)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitValidation, ExitCode(errors.New("unknown flag")))
	assert.Equal(t, ExitNetwork, ExitCode(exitWithCode(ExitNetwork, core.ErrNetwork)))

	err := exitWithCode(ExitProvider, core.ErrServer)
	assert.ErrorIs(t, err, core.ErrServer)
	assert.Equal(t, "server error", err.Error())
}

func TestGenerate(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.run(context.Background(), "generate", "--provider", "lorem", "--prompt", "Hi", "--max-tokens", "4")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(ta.stdout.String()), 4)
}

func TestGenerateJSON(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.run(context.Background(), "generate", "--provider", "lorem", "--prompt", "Hi", "--max-tokens", "3", "--json")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(ta.stdout.Bytes(), &out))
	assert.Equal(t, "lorem", out["provider"])
	assert.Equal(t, lorem.DefaultModel, out["model"])
	assert.True(t, strings.HasPrefix(out["call_id"].(string), "call-"))
	assert.Len(t, strings.Fields(out["output"].(string)), 3)
	assert.Contains(t, out, "duration_ms")
}

func TestStream(t *testing.T) {
	ta := newTestApp(t, &config.Config{
		DefaultProvider: "lorem",
		Providers:       map[string]config.ProviderConfig{"lorem": {Model: "lorem-fast"}},
		Logging:         config.LoggingConfig{Calls: "basic-text"},
	})

	err := ta.run(context.Background(), "stream", "--prompt", "Hi", "--max-tokens", "5")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(ta.stdout.String()), 5)

	// Config call logging goes to the CLI logger on stderr.
	assert.Contains(t, ta.stderr.String(), "text-streaming finished")
	assert.Equal(t, "lorem-fast", ta.model)
}

func TestStreamJSONWithTrace(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.run(context.Background(), "stream", "--provider", "lorem", "--prompt", "Hi", "--max-tokens", "2", "--json", "--trace")
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(ta.stdout.Bytes(), &out))
	assert.Len(t, strings.Fields(out["output"].(string)), 2)

	// The stdout exporter writes spans to stderr on shutdown.
	assert.Contains(t, ta.stderr.String(), "text-streaming")
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no provider", []string{"generate", "--prompt", "Hi"}, "provider required"},
		{"unknown provider", []string{"generate", "--provider", "nope", "--prompt", "Hi"}, "unsupported provider"},
		{"missing key", []string{"generate", "--provider", "openai", "--prompt", "Hi"}, "OPENAI_API_KEY"},
		{"bad log mode", []string{"stream", "--provider", "lorem", "--prompt", "Hi", "--log-calls", "loud"}, "--log-calls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, nil)
			err := ta.run(context.Background(), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitValidation, ExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAPIKeyLookup(t *testing.T) {
	var got providers.Config
	capture := WithBackendFactory(func(name string, cfg providers.Config) (providers.Backend, error) {
		got = cfg
		return instantLorem(name, cfg)
	})

	t.Run("environment", func(t *testing.T) {
		ta := newTestApp(t, nil, capture, WithGetenv(func(k string) string {
			if k == "OPENAI_API_KEY" {
				return "sk-env"
			}
			return ""
		}))
		require.NoError(t, ta.run(context.Background(), "generate", "--provider", "openai", "--prompt", "Hi", "--max-tokens", "1", "--verbose"))
		assert.Equal(t, "sk-env", got.APIKey.Expose())
		assert.Contains(t, ta.stderr.String(), "api_key=[REDACTED]")
		assert.NotContains(t, ta.stderr.String(), "sk-env")
	})

	t.Run("store by api_key_ref", func(t *testing.T) {
		cfg := &config.Config{Providers: map[string]config.ProviderConfig{
			"openai": {APIKeyRef: "work-openai", BaseURL: "https://proxy.example.com/"},
		}}
		ta := newTestApp(t, cfg, capture)
		ta.store["work-openai"] = "sk-store"

		require.NoError(t, ta.run(context.Background(), "generate", "--provider", "openai", "--prompt", "Hi", "--max-tokens", "1"))
		assert.Equal(t, "sk-store", got.APIKey.Expose())
		assert.Equal(t, "https://proxy.example.com/", got.BaseURL)
	})
}

func TestSettingsFromConfigAndFlags(t *testing.T) {
	var got providers.Config
	ta := newTestApp(t, &config.Config{
		Retry:    config.RetryConfig{MaxRetries: 2},
		Throttle: config.ThrottleConfig{MaxConcurrency: 1},
	}, WithBackendFactory(func(name string, cfg providers.Config) (providers.Backend, error) {
		got = cfg
		return instantLorem(name, cfg)
	}))

	require.NoError(t, ta.run(context.Background(), "generate", "--provider", "lorem", "--prompt", "Hi",
		"--max-tokens", "2", "--temperature", "0.3"))

	assert.Equal(t, 2, got.Settings.MaxCompletionTokens)
	require.NotNil(t, got.Settings.Temperature)
	assert.InDelta(t, 0.3, *got.Settings.Temperature, 1e-9)
	assert.NotNil(t, got.Settings.Retry)
	assert.NotNil(t, got.Settings.Throttle)
	assert.Nil(t, got.Breaker)
}

func TestCallErrorExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{"provider", &core.ProviderError{Provider: "openai", Status: 429, RequestID: "req-1", Message: "slow down", Err: core.ErrRateLimited}, ExitProvider, "Request ID: req-1"},
		{"network", &core.ProviderError{Provider: "openai", Message: "dial tcp", Err: core.ErrNetwork}, ExitNetwork, "dial tcp"},
		{"aborted", core.NewAbortError(canceledContext()), ExitAborted, "aborted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, nil, WithBackendFactory(func(string, providers.Config) (providers.Backend, error) {
				return failingBackend{err: tt.err}, nil
			}))
			err := ta.run(context.Background(), "generate", "--provider", "lorem", "--prompt", "Hi")
			assert.Equal(t, tt.wantCode, ExitCode(err))
			assert.Contains(t, ta.stderr.String(), tt.wantOut)
		})
	}
}

func TestCallErrorJSON(t *testing.T) {
	ta := newTestApp(t, nil, WithBackendFactory(func(string, providers.Config) (providers.Backend, error) {
		return failingBackend{err: &core.ProviderError{Provider: "openai", Status: 401, Code: "invalid_api_key", Message: "bad key", Err: core.ErrUnauthorized}}, nil
	}))

	err := ta.run(context.Background(), "stream", "--provider", "lorem", "--prompt", "Hi", "--json")
	assert.Equal(t, ExitProvider, ExitCode(err))

	var out struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(ta.stderr.Bytes(), &out))
	assert.Equal(t, "invalid_api_key", out.Error["type"])
	assert.Equal(t, float64(401), out.Error["status"])
}

func TestCancelledContext(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.run(canceledContext(), "generate", "--provider", "lorem", "--prompt", "Hi")
	assert.Equal(t, ExitAborted, ExitCode(err))
	assert.ErrorIs(t, err, core.ErrAborted)
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestKeys(t *testing.T) {
	ta := newTestApp(t, nil, WithIO(strings.NewReader("sk-secret\n"), nil, nil))

	require.NoError(t, ta.run(context.Background(), "keys", "set", "openai"))
	assert.Equal(t, "sk-secret", ta.store["openai"])
	assert.Contains(t, ta.stdout.String(), "stored successfully")

	ta.stdout.Reset()
	require.NoError(t, ta.run(context.Background(), "keys", "list"))
	assert.Contains(t, ta.stdout.String(), "- openai")
	assert.NotContains(t, ta.stdout.String(), "sk-secret")

	require.NoError(t, ta.run(context.Background(), "keys", "delete", "openai"))
	assert.Empty(t, ta.store)

	err := ta.run(context.Background(), "keys", "delete", "openai")
	assert.Equal(t, ExitValidation, ExitCode(err))
	assert.Contains(t, err.Error(), "no key stored")
}

func TestKeysSetEmpty(t *testing.T) {
	ta := newTestApp(t, nil, WithIO(strings.NewReader("\n"), nil, nil))

	err := ta.run(context.Background(), "keys", "set", "openai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")
	ta := newTestApp(t, nil)

	require.NoError(t, ta.run(context.Background(), "init", "--config", path, "--provider", "anthropic"))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.DefaultProvider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.DefaultModel)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "off", cfg.Logging.Calls)

	err = ta.run(context.Background(), "init", "--config", path)
	assert.Equal(t, ExitValidation, ExitCode(err))

	require.NoError(t, ta.run(context.Background(), "init", "--config", path, "--force", "--provider", "lorem"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "default_provider: lorem")
}

func TestVersion(t *testing.T) {
	ta := newTestApp(t, nil)
	require.NoError(t, ta.run(context.Background(), "version"))
	assert.Contains(t, ta.stdout.String(), "modelfusion "+Version)

	ta.stdout.Reset()
	require.NoError(t, ta.run(context.Background(), "version", "--json"))
	var out map[string]string
	require.NoError(t, json.Unmarshal(ta.stdout.Bytes(), &out))
	assert.Equal(t, Version, out["version"])
	assert.NotEmpty(t, out["go_version"])
}
