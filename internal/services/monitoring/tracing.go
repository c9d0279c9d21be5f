package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// NewTracerProvider builds an SDK tracer provider for the given service
// name, using whichever span exporter the caller supplies (a host process
// wires in OTLP, stdout, or a test exporter; the runtime core itself only
// asks for a trace.Tracer).
func NewTracerProvider(serviceName string, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
}

// Tracer returns the package-scoped tracer the runtime core and node
// executor use to open spans.
func Tracer() trace.Tracer { return otel.Tracer("fluxwell/runtime") }

// StartExecutionSpan opens the root span for one workflow execution.
func StartExecutionSpan(ctx context.Context, executionID, workflowID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("execution.id", executionID),
		attribute.String("workflow.id", workflowID),
	))
}

// StartLevelSpan opens a span for one execution level.
func StartLevelSpan(ctx context.Context, levelIndex, nodeCount int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "workflow.level", trace.WithAttributes(
		attribute.Int("level.index", levelIndex),
		attribute.Int("level.node_count", nodeCount),
	))
}

// StartNodeSpan opens a span for one node execution.
func StartNodeSpan(ctx context.Context, nodeID, nodeType string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("node.id", nodeID),
		attribute.String("node.type", nodeType),
	))
}
