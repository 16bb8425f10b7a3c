package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Borahm/modelfusion/cli/credentials"
)

func (a *App) newKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long:  `Manage API keys for providers. Keys are stored encrypted in ~/.modelfusion/credentials.enc.`,
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "set <provider>",
		Short: "Set API key for a provider",
		Long:  `Set the API key for a provider. On a terminal the key is read without echo.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeysSet(args[0])
		},
	})
	keysCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored API keys",
		Long:  `List all stored API keys. Only provider names are shown, never key values.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeysList()
		},
	})
	keysCmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeysDelete(args[0])
		},
	})

	return keysCmd
}

func (a *App) runKeysSet(provider string) error {
	fmt.Fprintf(a.stdout, "Enter API key for %s: ", provider)

	apiKey, err := a.readSecret()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to read key: %w", err))
	}
	if apiKey == "" {
		return exitWithCode(ExitValidation, errors.New("API key cannot be empty"))
	}

	store, err := a.openStore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open credential store: %w", err))
	}
	if err := store.Set(provider, apiKey); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to store key: %w", err))
	}

	fmt.Fprintf(a.stdout, "API key for %s stored successfully.\n", provider)
	return nil
}

// readSecret reads one line from stdin, without echo when it is a terminal.
func (a *App) readSecret() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stdout)
		return strings.TrimSpace(string(b)), err
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) runKeysList() error {
	store, err := a.openStore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open credential store: %w", err))
	}

	names, err := store.List()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to list keys: %w", err))
	}

	if a.jsonOutput {
		return a.writeJSON(map[string]any{"keys": names})
	}
	if len(names) == 0 {
		fmt.Fprintln(a.stdout, "No API keys stored.")
		return nil
	}
	fmt.Fprintln(a.stdout, "Stored keys:")
	for _, name := range names {
		fmt.Fprintf(a.stdout, "  - %s\n", name)
	}
	return nil
}

func (a *App) runKeysDelete(provider string) error {
	store, err := a.openStore()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to open credential store: %w", err))
	}

	if err := store.Delete(provider); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return exitWithCode(ExitValidation, fmt.Errorf("no key stored for %s", provider))
		}
		return exitWithCode(ExitValidation, fmt.Errorf("failed to delete key: %w", err))
	}

	fmt.Fprintf(a.stdout, "API key for %s deleted.\n", provider)
	return nil
}
