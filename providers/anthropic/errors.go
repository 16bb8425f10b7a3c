package anthropic

import (
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Borahm/modelfusion/core"
	"github.com/Borahm/modelfusion/providers/internal/normalize"
)

// errorBody is the JSON error envelope of the Messages API.
type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusOverloaded is the status Anthropic returns when its API is overloaded.
const statusOverloaded = 529

// sentinelOverrides maps Anthropic-specific statuses.
var sentinelOverrides = map[int]error{
	statusOverloaded: core.ErrRateLimited,
}

// mapError converts an SDK error to a core.ProviderError.
func mapError(err error) error {
	if err == nil || normalize.IsCancellation(err) {
		return err
	}
	if api, ok := asAPIError(err); ok {
		sentinel := normalize.SentinelForStatusWithOverrides(api.Status, sentinelOverrides)
		return normalize.ProviderError(ProviderName, api.Status, api.RequestID, api.Code, api.Message, sentinel)
	}
	return normalize.NetworkError(ProviderName, err)
}

func asAPIError(err error) (normalize.APIError, bool) {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return normalize.APIError{}, false
	}
	out := normalize.APIError{Status: apiErr.StatusCode}
	if apiErr.Response != nil {
		out.RequestID = apiErr.Response.Header.Get("request-id")
	}

	var body errorBody
	if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil {
		out.Code = body.Error.Type
		out.Message = body.Error.Message
	}
	return out, true
}
