package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Borahm/modelfusion/cli/credentials"
	contribotel "github.com/Borahm/modelfusion/contrib/otel"
	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/middleware"
	"github.com/Borahm/modelfusion/providers"
)

// invokeFlags are shared by stream and generate.
type invokeFlags struct {
	prompt      string
	system      string
	maxTokens   int
	temperature float64
	trace       bool
	logCalls    string
	functionID  string
}

func (a *App) addInvokeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&a.invoke.prompt, "prompt", "", "instruction to send (required)")
	f.StringVar(&a.invoke.system, "system", "", "system prompt")
	f.IntVar(&a.invoke.maxTokens, "max-tokens", 0, "maximum completion tokens (0 = provider default)")
	f.Float64Var(&a.invoke.temperature, "temperature", -1, "sampling temperature (negative = provider default)")
	f.BoolVar(&a.invoke.trace, "trace", false, "print OpenTelemetry spans to stderr")
	f.StringVar(&a.invoke.logCalls, "log-calls", "", "function-call logging: off, basic-text, detailed-object")
	f.StringVar(&a.invoke.functionID, "function-id", "", "function ID attached to events")

	_ = cmd.MarkFlagRequired("prompt")
}

// invocation is a resolved backend plus the per-call options.
type invocation struct {
	backend  providers.Backend
	prompt   core.InstructionPrompt
	opts     []core.FunctionOption
	shutdown func(context.Context) error
}

// prepare resolves the provider, its API key and the call options.
func (a *App) prepare(ctx context.Context) (*invocation, error) {
	if a.provider == "" {
		return nil, exitWithCode(ExitValidation, errors.New("provider required: use --provider flag or set default_provider in config"))
	}
	if !providers.IsRegistered(a.provider) {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("unsupported provider: %s (available: %s)", a.provider, joinProviders()))
	}
	if a.invoke.logCalls != "" {
		switch a.invoke.logCalls {
		case "off", "basic-text", "detailed-object":
		default:
			return nil, exitWithCode(ExitValidation, fmt.Errorf("invalid --log-calls %q", a.invoke.logCalls))
		}
	}

	apiKey, err := a.lookupAPIKey(a.provider)
	if err != nil {
		return nil, err
	}

	pcfg := providers.Config{
		APIKey:   core.Secret(apiKey),
		Model:    a.model,
		Settings: a.settings(),
	}
	if pc := a.cfg.GetProvider(a.provider); pc != nil {
		pcfg.BaseURL = pc.BaseURL
	}
	if cb := a.cfg.CircuitBreaker; cb != nil {
		pcfg.Breaker = middleware.NewBreaker(a.provider, *cb, a.logger)
	}

	backend, err := a.createBackend(a.provider, pcfg)
	if err != nil {
		return nil, exitWithCode(ExitValidation, err)
	}

	inv := &invocation{
		backend:  backend,
		prompt:   core.InstructionPrompt{System: a.invoke.system, Instruction: a.invoke.prompt},
		shutdown: func(context.Context) error { return nil },
	}
	if a.invoke.functionID != "" {
		inv.opts = append(inv.opts, core.WithFunctionID(a.invoke.functionID))
	}
	if a.invoke.logCalls != "" {
		inv.opts = append(inv.opts, core.WithLogging(core.ParseLogMode(a.invoke.logCalls)))
	}

	exporter := a.cfg.Tracing.Exporter
	if a.invoke.trace {
		exporter = contribotel.ExporterStdout
	}
	if exporter != "" && exporter != contribotel.ExporterNone {
		tp, shutdown, err := contribotel.Setup(ctx, exporter, a.stderr)
		if err != nil {
			return nil, exitWithCode(ExitValidation, err)
		}
		inv.shutdown = shutdown
		inv.opts = append(inv.opts, core.WithObservers(contribotel.NewObserver(contribotel.WithTracerProvider(tp))))
	}

	a.logger.Debug("invocation prepared",
		"provider", a.provider,
		"model", backend.ModelInformation().ModelName,
		"api_key", pcfg.APIKey,
		"trace", exporter)
	return inv, nil
}

// settings combines the config's retry and throttle with the flag overrides.
func (a *App) settings() core.Settings {
	s := a.cfg.Settings()
	if a.invoke.maxTokens > 0 {
		s = s.WithMaxCompletionTokens(a.invoke.maxTokens)
	}
	if a.invoke.temperature >= 0 {
		s = s.WithTemperature(a.invoke.temperature)
	}
	return s
}

// lookupAPIKey reads the provider's key from the credential store, falling
// back to <PROVIDER>_API_KEY. The lorem backend needs no key.
func (a *App) lookupAPIKey(provider string) (string, error) {
	if provider == "lorem" {
		return "", nil
	}

	name := provider
	if pc := a.cfg.GetProvider(provider); pc != nil && pc.APIKeyRef != "" {
		name = pc.APIKeyRef
	}

	store, err := a.openStore()
	if err == nil {
		key, err := store.Get(name)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, credentials.ErrNotFound) {
			a.logger.Warn("credential store unreadable", "error", err)
		}
	} else {
		a.logger.Debug("credential store unavailable", "error", err)
	}

	envVar := strings.ToUpper(provider) + "_API_KEY"
	if key := a.getenv(envVar); key != "" {
		return key, nil
	}
	return "", exitWithCode(ExitValidation,
		fmt.Errorf("no API key for %s: run 'modelfusion keys set %s' or set %s", provider, name, envVar))
}

func joinProviders() string {
	return strings.Join(providers.List(), ", ")
}
