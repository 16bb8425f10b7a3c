package core

import "context"

// TextGenerationResult is the outcome of GenerateTextWithResponse.
type TextGenerationResult[R any] struct {
	Text     string
	Response R
	Metadata CallMetadata
}

// GenerateText invokes a single-shot backend and returns the generated text.
// The invocation emits the same started and finished events as StreamText.
func GenerateText[P, R any](
	ctx context.Context,
	model TextGenerationModel[P, R],
	prompt P,
	opts ...FunctionOption,
) (string, error) {
	res, err := GenerateTextWithResponse(ctx, model, prompt, opts...)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateTextWithResponse is GenerateText that also returns the raw
// backend response and the call metadata.
func GenerateTextWithResponse[P, R any](
	ctx context.Context,
	model TextGenerationModel[P, R],
	prompt P,
	opts ...FunctionOption,
) (*TextGenerationResult[R], error) {
	o := newFunctionOptions(opts)
	if o.settings != nil {
		model = model.WithSettings(*o.settings)
	}
	settings := model.Settings().Clone()

	events := NewEventSource(observerSnapshot(o, settings), o.errorHandler())
	duration := StartDurationMeasurement()
	metadata := o.newCallMetadata(FunctionTextGeneration, model.ModelInformation(), settings, prompt, duration)

	events.Notify(startedEvent(metadata))

	fail := func(err error) (*TextGenerationResult[R], error) {
		err = abortFor(ctx, err)
		events.Notify(finishedEvent(metadata, duration, resultFromError(err)))
		return nil, err
	}

	resp, err := CallWithRetryAndThrottle(ctx, func(ctx context.Context) (R, error) {
		return model.GenerateTextResponse(ctx, prompt, o.callOptions(settings.Clone()))
	}, settings.Retry, settings.Throttle)
	if err != nil {
		return fail(err)
	}

	text, err := model.ExtractText(resp)
	if err != nil {
		return fail(err)
	}

	events.Notify(finishedEvent(metadata, duration, Result{
		Status:   StatusSuccess,
		Output:   text,
		Response: resp,
	}))

	metadata.Settings = cloneSettings(metadata.Settings)
	return &TextGenerationResult[R]{
		Text:     text,
		Response: resp,
		Metadata: metadata,
	}, nil
}
