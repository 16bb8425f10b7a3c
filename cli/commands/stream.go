package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newStreamCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream a completion as it is generated",
		Long: `Stream a completion to stdout fragment by fragment.

Examples:
  modelfusion stream --provider openai --model gpt-4o-mini --prompt "Hello"
  modelfusion stream --provider lorem --prompt "Hi" --max-tokens 30 --trace
  modelfusion stream --prompt "Hello" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStream(cmd)
		},
	}
	a.addInvokeFlags(cmd)
	return cmd
}

func (a *App) runStream(cmd *cobra.Command) error {
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

	stream, err := inv.backend.StreamText(ctx, inv.prompt, inv.opts...)
	if err != nil {
		return a.handleCallError(err)
	}
	defer stream.Close()

	if a.jsonOutput {
		text, err := stream.Drain()
		if err != nil {
			return a.handleCallError(err)
		}
		md := stream.Metadata()
		return a.writeJSON(map[string]any{
			"call_id":  md.CallID,
			"provider": md.Model.Provider,
			"model":    md.Model.ModelName,
			"output":   text,
		})
	}

	for text, err := range stream.All() {
		if err != nil {
			fmt.Fprintln(a.stdout)
			return a.handleCallError(err)
		}
		fmt.Fprint(a.stdout, text)
	}
	fmt.Fprintln(a.stdout)
	return nil
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
