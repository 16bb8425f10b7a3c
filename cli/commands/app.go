// Package commands implements the modelfusion command-line interface.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Borahm/modelfusion/cli/config"
	"github.com/Borahm/modelfusion/cli/credentials"
	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers"

	// Registered backends.
	_ "github.com/Borahm/modelfusion/providers/anthropic"
	_ "github.com/Borahm/modelfusion/providers/lorem"
	_ "github.com/Borahm/modelfusion/providers/openai"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// BackendFactory creates a backend by provider name.
type BackendFactory func(name string, cfg providers.Config) (providers.Backend, error)

// StoreFactory opens the credential store.
type StoreFactory func() (credentials.Store, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig    ConfigLoader
	createBackend BackendFactory
	openStore     StoreFactory
	getenv        func(string) string
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer

	cfgFile    string
	envFile    string
	provider   string
	model      string
	jsonOutput bool
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger

	invoke invokeFlags
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithBackendFactory injects a backend factory dependency.
func WithBackendFactory(factory BackendFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.createBackend = factory
		}
	}
}

// WithStoreFactory injects a credential store dependency.
func WithStoreFactory(factory StoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.openStore = factory
		}
	}
}

// WithGetenv injects the environment lookup used for API keys.
func WithGetenv(getenv func(string) string) AppOption {
	return func(a *App) {
		if getenv != nil {
			a.getenv = getenv
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:    config.LoadConfig,
		createBackend: providers.Create,
		openStore:     credentials.OpenDefault,
		getenv:        os.Getenv,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "modelfusion",
		Short: "Stream and generate text with LLM backends",
		Long: `modelfusion calls text generation backends with retry, throttling,
cancellation and lifecycle logging.

Store API keys with 'modelfusion keys set', or export them as environment
variables (OPENAI_API_KEY, ANTHROPIC_API_KEY), optionally from a .env file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.modelfusion/config.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with API keys (ignored if missing)")
	root.PersistentFlags().StringVar(&a.provider, "provider", "", "provider ID ("+joinProviders()+")")
	root.PersistentFlags().StringVar(&a.model, "model", "", "model ID (e.g. gpt-4o-mini)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newStreamCommand())
	root.AddCommand(a.newGenerateCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newInitCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command. Cancelling ctx aborts in-flight calls.
func (a *App) Execute(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

// SetArgs sets the command-line arguments, for tests.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func (a *App) initConfig() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
			return exitWithCode(ExitValidation, err)
		}
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	a.cfg = cfg

	a.logger = cfg.NewLogger(a.stderr, a.verbose)
	core.SetLogger(a.logger)
	core.SetGlobalLogging(core.ParseLogMode(cfg.Logging.Calls))

	// Apply config defaults if flags not set.
	if a.provider == "" && cfg.DefaultProvider != "" {
		a.provider = cfg.DefaultProvider
	}
	if a.model == "" && cfg.DefaultModel != "" {
		a.model = cfg.DefaultModel
	}
	if pc := cfg.GetProvider(a.provider); a.model == "" && pc != nil {
		a.model = pc.Model
	}

	a.logger.Debug("config loaded", "path", path, "provider", a.provider, "model", a.model)
	return nil
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute(ctx context.Context) error {
	return defaultApp.Execute(ctx)
}
