package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/openclaw/bladerunner/internal/engine"

// startTaskSpan opens the root span for a task run. With no tracer
// provider configured this is a noop.
func startTaskSpan(ctx context.Context, task, profile string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "engine.run",
		trace.WithAttributes(
			attribute.String("task.prompt", truncateForLog(task, 200)),
			attribute.String("task.profile", profile),
		))
}

func startStepSpan(ctx context.Context, index int, description string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "engine.step",
		trace.WithAttributes(
			attribute.Int("step.index", index),
			attribute.String("step.description", truncateForLog(description, 200)),
		))
}

func startToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "engine.tool",
		trace.WithAttributes(attribute.String("tool.name", tool)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
