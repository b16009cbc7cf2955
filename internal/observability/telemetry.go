package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope for tool execution. Uses the global tracer/meter
// providers, so a no-op provider keeps all of this free when no SDK is wired.
const scopeName = "taskbridge/server"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
)

func init() {
	toolCalls, _ = meter.Int64Counter("taskbridge.tool.calls",
		metric.WithDescription("Number of tool executions by module, tool, and status"))
	toolDuration, _ = meter.Float64Histogram("taskbridge.tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("ms"))
}

// StartToolSpan opens a span covering a single tool execution.
func StartToolSpan(ctx context.Context, module, tool string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tool."+tool, trace.WithAttributes(
		attribute.String("tool.module", module),
		attribute.String("tool.name", tool),
	))
}

// EndToolSpan closes a tool span, recording the error when present.
func EndToolSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordToolCall records counter and duration metrics for a tool execution.
func RecordToolCall(ctx context.Context, module, tool, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("module", module),
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	toolCalls.Add(ctx, 1, attrs)
	toolDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
