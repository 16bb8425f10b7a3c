// Package normalize provides shared provider error normalization helpers.
package normalize

import (
	"context"
	"errors"
	"net/http"

	"github.com/Borahm/modelfusion/core"
)

// APIError is the part of an SDK error response that normalization keeps.
type APIError struct {
	Status    int
	RequestID string
	Code      string
	Message   string
}

// SDKError normalizes an error returned by a provider SDK call.
// Cancellation passes through unchanged so the orchestrators can report an
// abort. When asAPI recognizes err as an HTTP error response, the result is
// a status-classified ProviderError; any other failure, a request timeout
// included, is a network error.
func SDKError(provider string, err error, asAPI func(error) (APIError, bool)) error {
	if err == nil {
		return nil
	}
	if IsCancellation(err) {
		return err
	}
	if api, ok := asAPI(err); ok {
		return ProviderError(provider, api.Status, api.RequestID, api.Code, api.Message, nil)
	}
	return NetworkError(provider, err)
}

// IsCancellation reports whether err is a cancellation rather than a
// backend failure. Deadlines are not included: an SDK request timeout
// and the caller's deadline look alike, and the orchestrators tell them
// apart by the caller's context.
func IsCancellation(err error) bool {
	return core.IsAbort(err) || errors.Is(err, context.Canceled)
}

// NetworkError wraps transport failures as provider-specific network errors.
// The original error stays in the chain.
func NetworkError(provider string, err error) error {
	return &core.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Err:      errors.Join(core.ErrNetwork, err),
	}
}

// DecodeError wraps decode/parsing failures as provider-specific decode errors.
func DecodeError(provider string, err error) error {
	return &core.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Err:      core.ErrDecode,
	}
}

// ProviderError constructs a normalized ProviderError.
// If message is empty, HTTP status text is used.
// If sentinel is nil, default status-based mapping is applied.
func ProviderError(provider string, status int, requestID, code, message string, sentinel error) error {
	if message == "" {
		message = http.StatusText(status)
	}
	if sentinel == nil {
		sentinel = SentinelForStatus(status)
	}
	return &core.ProviderError{
		Provider:  provider,
		Status:    status,
		RequestID: requestID,
		Code:      code,
		Message:   message,
		Err:       sentinel,
	}
}

// SentinelForStatus maps an HTTP status code to a core sentinel error.
// Unclassified statuses map to core.ErrServer.
func SentinelForStatus(status int) error {
	return SentinelForStatusWithOverrides(status, nil)
}

// SentinelForStatusWithOverrides maps an HTTP status code to a core sentinel error,
// then applies any exact status overrides from the provided map.
func SentinelForStatusWithOverrides(status int, overrides map[int]error) error {
	if override, ok := overrides[status]; ok && override != nil {
		return override
	}
	if sentinel := core.StatusSentinel(status); sentinel != nil {
		return sentinel
	}
	return core.ErrServer
}
