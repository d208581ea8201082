package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "shatteredmoon"

// StartPlanSpan starts a span for a plan execution run.
func StartPlanSpan(ctx context.Context, planID, graphID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "plan.execute",
		trace.WithAttributes(
			attribute.String("plan.id", planID),
			attribute.String("graph.id", graphID),
		),
	)
}

// StartPhaseSpan starts a span for a single phase within a plan execution.
func StartPhaseSpan(ctx context.Context, planID string, phaseIndex int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "plan.phase",
		trace.WithAttributes(
			attribute.String("plan.id", planID),
			attribute.Int("phase.index", phaseIndex),
		),
	)
}

// StartResolutionSpan starts a span for conflict resolution on a graph.
func StartResolutionSpan(ctx context.Context, graphID string, conflicts int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "conflicts.resolve",
		trace.WithAttributes(
			attribute.String("graph.id", graphID),
			attribute.Int("conflicts.count", conflicts),
		),
	)
}
