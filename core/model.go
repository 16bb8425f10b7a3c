package core

import "context"

// Model is the part of a backend every orchestrator needs.
// Implementations SHOULD be safe for concurrent calls.
type Model interface {
	// ModelInformation identifies the provider and model.
	ModelInformation() ModelInformation

	// Settings returns the model's current configuration.
	Settings() Settings
}

// CallOptions are passed to a backend for one invocation. Cancellation is
// carried by the context argument of the backend methods.
type CallOptions struct {
	FunctionID string
	Settings   Settings
	Run        *Run
}

// TextStreamingModel is a backend that produces text incrementally.
// D is the backend's full delta type.
type TextStreamingModel[P, D any] interface {
	Model

	// WithSettings returns a new model with s merged into its settings.
	WithSettings(s Settings) TextStreamingModel[P, D]

	// GenerateDeltaStreamResponse starts a stream. It may be called more
	// than once for one invocation when retries are configured.
	GenerateDeltaStreamResponse(ctx context.Context, prompt P, opts CallOptions) (DeltaStream[D], error)

	// ExtractTextDelta returns the text contained in a full delta.
	// ok is false when the delta carries no text.
	ExtractTextDelta(fullDelta D) (text string, ok bool)
}

// TextGenerationModel is a backend that produces text in one response.
// R is the backend's raw response type.
type TextGenerationModel[P, R any] interface {
	Model

	// WithSettings returns a new model with s merged into its settings.
	WithSettings(s Settings) TextGenerationModel[P, R]

	// GenerateTextResponse performs one backend call.
	GenerateTextResponse(ctx context.Context, prompt P, opts CallOptions) (R, error)

	// ExtractText returns the generated text of a response.
	ExtractText(response R) (string, error)
}
