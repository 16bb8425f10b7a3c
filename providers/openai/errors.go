package openai

import (
	"errors"

	"github.com/openai/openai-go"

	"github.com/Borahm/modelfusion/providers/internal/normalize"
)

// mapError converts an SDK error to a core.ProviderError.
func mapError(err error) error {
	return normalize.SDKError(ProviderName, err, asAPIError)
}

func asAPIError(err error) (normalize.APIError, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return normalize.APIError{}, false
	}
	out := normalize.APIError{
		Status:  apiErr.StatusCode,
		Code:    apiErr.Code,
		Message: apiErr.Message,
	}
	if apiErr.Response != nil {
		out.RequestID = apiErr.Response.Header.Get("x-request-id")
	}
	return out, true
}
