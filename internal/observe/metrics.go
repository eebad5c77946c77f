package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-execution measurements. It satisfies the engine's
// MetricsRecorder seam and feeds the Prometheus endpoint through the meter
// provider it was built with.
type Metrics struct {
	meter metric.Meter

	executionsTotal   metric.Int64Counter
	executionDuration metric.Float64Histogram
}

// NewMetrics creates the execution metrics on the given meter provider.
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	meter := meterProvider.Meter("pica")

	m := &Metrics{meter: meter}

	var err error

	m.executionsTotal, err = meter.Int64Counter(
		"pica_executions_total",
		metric.WithDescription("Total number of action executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, err
	}

	m.executionDuration, err = meter.Float64Histogram(
		"pica_execution_duration_seconds",
		metric.WithDescription("Action execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordExecution records one action execution. Action ids are unbounded, so
// only platform and outcome become labels.
func (m *Metrics) RecordExecution(platform, actionID string, statusCode int, duration time.Duration, success bool) {
	status := "failure"
	if success {
		status = "success"
	}

	attrs := metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("status", status),
	)

	ctx := context.Background()
	m.executionsTotal.Add(ctx, 1, attrs)
	m.executionDuration.Record(ctx, duration.Seconds(), attrs)
}
