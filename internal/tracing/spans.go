package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrVariableName  = "variable.name"
	AttrVariableCount = "variable.count"
	AttrDepth         = "depth"
	AttrType          = "type"
	AttrBindingName   = "binding.name"
	AttrCardinality   = "binding.cardinality"
	AttrGroupKey      = "group.key"
	AttrTupleCount    = "tuple.count"
	AttrCacheHit      = "cache.hit"
	AttrPlanPath      = "plan.path"
)

// SpanPrefixRegistry prefixes every registry operation span.
const SpanPrefixRegistry = "registry."

// Event names recorded on spans.
const (
	EventPlanSection = "plan.section"
	EventCacheMiss   = "cache.miss"
)

// Start opens a span named registry.<op>. A nil tracer yields a no-op span.
func Start(ctx context.Context, tracer trace.Tracer, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return tracer.Start(ctx, SpanPrefixRegistry+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err on span, sets its status and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the hex trace ID of the span in ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
