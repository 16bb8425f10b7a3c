package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/Borahm/modelfusion/cli/config"
)

const configTemplate = `# modelfusion configuration
default_provider: {{.Provider}}
{{- if .Model}}
default_model: {{.Model}}
{{- end}}

providers:
  {{.Provider}}:
    api_key_ref: {{.Provider}}

retry:
  max_retries: 3
  base_delay: 1s
  max_delay: 30s
  jitter: 0.2

throttle:
  max_concurrency: 4

logging:
  level: info
  format: text
  calls: "off"

tracing:
  exporter: none

# circuit_breaker:
#   max_failures: 5
#   timeout: 30s
#   interval: 60s
`

var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"lorem":     "lorem-medium",
}

func (a *App) newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a starter config file with retry, throttle, logging and tracing
sections to --config (default ~/.modelfusion/config.yaml).

Example:
  modelfusion init --provider anthropic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func (a *App) runInit(force bool) error {
	provider := a.provider
	if provider == "" {
		provider = "openai"
	}
	if _, ok := defaultModels[provider]; !ok {
		return exitWithCode(ExitValidation, fmt.Errorf("unsupported provider: %s", provider))
	}
	model := a.model
	if model == "" {
		model = defaultModels[provider]
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return exitWithCode(ExitValidation, fmt.Errorf("%s already exists (use --force to overwrite)", path))
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return exitWithCode(ExitValidation, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return exitWithCode(ExitValidation, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	defer f.Close()

	tmpl := template.Must(template.New("config").Parse(configTemplate))
	if err := tmpl.Execute(f, struct{ Provider, Model string }{provider, model}); err != nil {
		return exitWithCode(ExitValidation, err)
	}

	fmt.Fprintf(a.stdout, "Wrote %s\n", path)
	return nil
}
