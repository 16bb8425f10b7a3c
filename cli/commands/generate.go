package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Borahm/modelfusion/core"
)

func (a *App) newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a completion in one response",
		Long: `Generate a completion and print it once it is complete.

Examples:
  modelfusion generate --provider anthropic --prompt "Name three rivers"
  modelfusion generate --provider lorem --prompt "Hi" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd)
		},
	}
	a.addInvokeFlags(cmd)
	return cmd
}

func (a *App) runGenerate(cmd *cobra.Command) error {
	ctx := cmd.Context()
	inv, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := inv.shutdown(ctx); err != nil {
			a.logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	// Capture the finished event for the JSON summary.
	var finished core.Event
	capture := core.ObserverFunc(func(e core.Event) error {
		if e.Type == core.EventFinished {
			finished = e
		}
		return nil
	})
	opts := append(inv.opts, core.WithObservers(capture))

	text, err := inv.backend.GenerateText(ctx, inv.prompt, opts...)
	if err != nil {
		return a.handleCallError(err)
	}

	if a.jsonOutput {
		md := finished.Metadata
		return a.writeJSON(map[string]any{
			"call_id":     md.CallID,
			"provider":    md.Model.Provider,
			"model":       md.Model.ModelName,
			"output":      text,
			"duration_ms": finished.DurationMs(),
		})
	}
	fmt.Fprintln(a.stdout, text)
	return nil
}
