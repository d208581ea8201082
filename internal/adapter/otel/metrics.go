package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "shatteredmoon"

// Metrics holds all coordination metric instruments.
type Metrics struct {
	GraphsCreated      metric.Int64Counter
	ConflictsDetected  metric.Int64Counter
	StrategiesApplied  metric.Int64Counter
	PlansExecuted      metric.Int64Counter
	TasksFailed        metric.Int64Counter
	PhaseDuration      metric.Float64Histogram
	PlanParallelism    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.GraphsCreated, err = meter.Int64Counter("shatteredmoon.graphs.created",
		metric.WithDescription("Number of dependency graphs built"))
	if err != nil {
		return nil, err
	}

	m.ConflictsDetected, err = meter.Int64Counter("shatteredmoon.conflicts.detected",
		metric.WithDescription("Number of conflicts detected during analysis"))
	if err != nil {
		return nil, err
	}

	m.StrategiesApplied, err = meter.Int64Counter("shatteredmoon.strategies.applied",
		metric.WithDescription("Number of resolution strategies applied"))
	if err != nil {
		return nil, err
	}

	m.PlansExecuted, err = meter.Int64Counter("shatteredmoon.plans.executed",
		metric.WithDescription("Number of execution plans run"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("shatteredmoon.tasks.failed",
		metric.WithDescription("Number of tasks that failed during execution"))
	if err != nil {
		return nil, err
	}

	m.PhaseDuration, err = meter.Float64Histogram("shatteredmoon.phase.duration_seconds",
		metric.WithDescription("Phase wall-clock duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.PlanParallelism, err = meter.Float64Histogram("shatteredmoon.plan.parallelism",
		metric.WithDescription("Achieved parallelism ratio per plan"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
