// Package otel records model invocations as OpenTelemetry spans.
//
// Register the observer globally or per call:
//
//	core.SetGlobalObservers(otel.NewObserver())
//
// Each invocation becomes one span named after its function type, started
// at the invocation's start timestamp and ended when its finished event
// arrives.
package otel

import (
	"context"
	"sync"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Borahm/modelfusion/core"
)

const tracerName = "github.com/Borahm/modelfusion"

// Attribute keys set on invocation spans.
const (
	AttrCallID       = attribute.Key("modelfusion.call_id")
	AttrRunID        = attribute.Key("modelfusion.run_id")
	AttrSessionID    = attribute.Key("modelfusion.session_id")
	AttrUserID       = attribute.Key("modelfusion.user_id")
	AttrFunctionID   = attribute.Key("modelfusion.function_id")
	AttrFunctionType = attribute.Key("modelfusion.function_type")
	AttrStatus       = attribute.Key("modelfusion.result.status")
	AttrOutputLength = attribute.Key("modelfusion.result.output_length")
	AttrDurationMs   = attribute.Key("modelfusion.duration_ms")

	AttrSystem      = attribute.Key("gen_ai.system")
	AttrModel       = attribute.Key("gen_ai.request.model")
	AttrMaxTokens   = attribute.Key("gen_ai.request.max_tokens")
	AttrTemperature = attribute.Key("gen_ai.request.temperature")
)

// Observer implements core.Observer by opening a span on the started event
// and ending it on the finished event. It is safe for concurrent use.
type Observer struct {
	tracer trace.Tracer
	spans  sync.Map // call ID -> trace.Span
}

// Option configures an Observer.
type Option func(*options)

type options struct {
	provider trace.TracerProvider
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.provider = tp
	}
}

// NewObserver creates a tracing observer.
func NewObserver(opts ...Option) *Observer {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.provider == nil {
		o.provider = otelapi.GetTracerProvider()
	}
	return &Observer{tracer: o.provider.Tracer(tracerName)}
}

// OnEvent implements core.Observer.
func (o *Observer) OnEvent(e core.Event) error {
	switch e.Type {
	case core.EventStarted:
		o.start(e.Metadata)
	case core.EventFinished:
		o.finish(e)
	}
	return nil
}

// InFlight returns the number of open spans.
func (o *Observer) InFlight() int {
	n := 0
	o.spans.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (o *Observer) start(md core.CallMetadata) trace.Span {
	_, span := o.tracer.Start(context.Background(), string(md.FunctionType),
		trace.WithTimestamp(md.StartTimestamp),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(metadataAttributes(md)...),
	)
	o.spans.Store(md.CallID, span)
	return span
}

func (o *Observer) finish(e core.Event) {
	var span trace.Span
	if v, ok := o.spans.LoadAndDelete(e.Metadata.CallID); ok {
		span = v.(trace.Span)
	} else {
		span = o.start(e.Metadata)
		o.spans.Delete(e.Metadata.CallID)
	}

	span.SetAttributes(AttrDurationMs.Int64(e.DurationMs()))
	if r := e.Result; r != nil {
		span.SetAttributes(AttrStatus.String(string(r.Status)))
		switch r.Status {
		case core.StatusSuccess:
			span.SetAttributes(AttrOutputLength.Int(len(r.Output)))
			span.SetStatus(codes.Ok, "")
		case core.StatusError:
			if r.Err != nil {
				span.RecordError(r.Err)
				span.SetStatus(codes.Error, r.Err.Error())
			} else {
				span.SetStatus(codes.Error, "")
			}
		case core.StatusAbort:
			span.AddEvent("aborted")
		}
	}
	span.End(trace.WithTimestamp(e.FinishTimestamp))
}

func metadataAttributes(md core.CallMetadata) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrCallID.String(md.CallID),
		AttrFunctionType.String(string(md.FunctionType)),
		AttrSystem.String(md.Model.Provider),
		AttrModel.String(md.Model.ModelName),
	}
	for key, value := range map[attribute.Key]string{
		AttrRunID:      md.RunID,
		AttrSessionID:  md.SessionID,
		AttrUserID:     md.UserID,
		AttrFunctionID: md.FunctionID,
	} {
		if value != "" {
			attrs = append(attrs, key.String(value))
		}
	}
	if v, ok := md.Settings["max_completion_tokens"].(int); ok {
		attrs = append(attrs, AttrMaxTokens.Int(v))
	}
	if v, ok := md.Settings["temperature"].(float64); ok {
		attrs = append(attrs, AttrTemperature.Float64(v))
	}
	return attrs
}
