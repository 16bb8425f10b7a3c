// Package core orchestrates calls to text generation backends.
//
// A backend implements [TextStreamingModel] or [TextGenerationModel]. The
// orchestrators [StreamText] and [GenerateText] wrap every call with retry,
// throttling, cancellation, duration measurement, output accumulation and
// lifecycle events, so backends only translate prompts and responses.
//
// # Streaming
//
// [StreamText] returns a [TextStream] that pulls from the backend only when
// the caller asks for the next fragment:
//
//	stream, err := core.StreamText(ctx, model, "Tell me a story.")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Text())
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// Or with range-over-func:
//
//	for text, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(text)
//	}
//
// Backends deliver a [DeltaStream] of [DeltaEvent] values. Use
// [NewSliceDeltaStream] for canned responses and [NewChannelDeltaStream] for
// producers that push from a goroutine.
//
// # Observers
//
// Every invocation emits exactly one started and one finished [Event] to
// its [Observer] values, which come from the global registry
// ([SetGlobalObservers]), the model's [Settings], the [Run] and the call's
// [WithObservers] option. A failing or panicking observer is reported to
// the run's [ErrorHandler] and never affects the call.
//
// [SetGlobalLogging] and [WithLogging] enable function-call logging through
// log/slog; see [SetLogger].
//
// # Retry and Throttle
//
// Obtaining the backend stream, or the single response, goes through
// [CallWithRetryAndThrottle]:
//
//	model = model.WithSettings(core.Settings{}.
//	    WithRetry(core.NewRetryPolicy(core.RetryConfig{MaxRetries: 5})).
//	    WithThrottle(core.ThrottleMaxConcurrency(4)))
//
// Only setup is retried. Once fragments are flowing, a backend error ends
// the stream. Mark errors with [Transient] or [Permanent] to override the
// default classification.
//
// # Cancellation
//
// Cancel the context passed to the orchestrator. The call stops at the next
// suspension point and returns an [*AbortError]; errors.Is(err, ErrAborted)
// reports it, and the finished event carries [StatusAbort].
//
// # Thread Safety
//
// Models, policies, observers and the registry are safe for concurrent use.
// A [TextStream] belongs to one goroutine.
package core
