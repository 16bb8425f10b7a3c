package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Borahm/modelfusion/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitProvider   = 2
	ExitNetwork    = 3
	ExitAborted    = 130
)

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode returns the process exit code for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitValidation
}

// handleCallError reports a failed backend call and classifies its exit code.
func (a *App) handleCallError(err error) error {
	var provErr *core.ProviderError
	switch {
	case core.IsAbort(err):
		a.reportError("aborted", err.Error(), nil)
		return exitWithCode(ExitAborted, err)
	case errors.As(err, &provErr):
		a.reportError(provErr.Code, provErr.Message, provErr)
		if errors.Is(err, core.ErrNetwork) {
			return exitWithCode(ExitNetwork, err)
		}
		return exitWithCode(ExitProvider, err)
	case errors.Is(err, core.ErrNetwork):
		a.reportError("network_error", err.Error(), nil)
		return exitWithCode(ExitNetwork, err)
	default:
		a.reportError("error", err.Error(), nil)
		return exitWithCode(ExitProvider, err)
	}
}

func (a *App) reportError(errType, message string, provErr *core.ProviderError) {
	if a.jsonOutput {
		body := map[string]any{"type": errType, "message": message}
		if provErr != nil {
			body["provider"] = provErr.Provider
			body["status"] = provErr.Status
			body["request_id"] = provErr.RequestID
		}
		enc := json.NewEncoder(a.stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": body})
		return
	}

	fmt.Fprintf(a.stderr, "Error: %s\n", message)
	if provErr != nil && provErr.RequestID != "" {
		fmt.Fprintf(a.stderr, "  Provider: %s, Request ID: %s\n", provErr.Provider, provErr.RequestID)
	}
}
