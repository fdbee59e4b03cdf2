package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the pulse-digest application.
var tracer = otel.Tracer("pulse-digest")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// StartStageSpan starts a span for one pipeline stage, tagged with the run ID
// so traces for a run can be stitched together across stages.
//
// Example usage:
//
//	ctx, span := tracing.StartStageSpan(ctx, runID, "scrape")
//	defer span.End()
func StartStageSpan(ctx context.Context, runID int64, stage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline."+stage,
		trace.WithAttributes(
			attribute.Int64("run.id", runID),
			attribute.String("pipeline.stage", stage),
		),
	)
}
