// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EngineOperation represents the type of clustering engine operation being traced.
type EngineOperation string

const (
	// EngineOperationPlace represents the placement decision for an arriving stream.
	EngineOperationPlace EngineOperation = "place"
	// EngineOperationJoin represents adding a stream to an existing event.
	EngineOperationJoin EngineOperation = "join"
	// EngineOperationForm represents forming a new event from unclustered streams.
	EngineOperationForm EngineOperation = "form"
	// EngineOperationEnd represents ending a stream and recomputing its event.
	EngineOperationEnd EngineOperation = "end"
)

// StartEngineSpan creates a new span for a clustering engine operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartEngineSpan(ctx, streamID, tracing.EngineOperationPlace)
//	defer endSpan(err)
//	// ... run the placement ...
func StartEngineSpan(ctx context.Context, streamID string, operation EngineOperation) (context.Context, func(error)) {
	tracer := otel.Tracer("crowdlens/engine")

	ctx, span := tracer.Start(ctx, "engine."+string(operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("engine.operation", string(operation)),
		),
	)

	if streamID != "" {
		span.SetAttributes(attribute.String("stream.id", streamID))
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartSpan(ctx, "mask_viewport")
//	defer endSpan(err)
//	// ... perform operation ...
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("crowdlens")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
