package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricEventsProcessed  = "healthfang.events.processed.total"
	metricRepositories     = "healthfang.repositories.total"
	metricAnalysisDuration = "healthfang.repository.analysis.duration.seconds"

	attrKind    = "kind"
	attrOutcome = "outcome"
)

// Repository outcomes.
const (
	OutcomeReady      = "ready"
	OutcomeFailedTask = "failed_task"
	OutcomeTimeout    = "timeout"
	OutcomeError      = "error"
)

// durationBuckets spans sub-second local dumps to multi-minute index scans.
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// RunMetrics holds the instruments recorded while analyzing repositories.
// A nil *RunMetrics records nothing.
type RunMetrics struct {
	events       metric.Int64Counter
	repositories metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewRunMetrics creates the run instruments on mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	events, err := mt.Int64Counter(metricEventsProcessed,
		metric.WithDescription("Events fed to the aggregator"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEventsProcessed, err)
	}

	repositories, err := mt.Int64Counter(metricRepositories,
		metric.WithDescription("Repositories by readiness outcome"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRepositories, err)
	}

	duration, err := mt.Float64Histogram(metricAnalysisDuration,
		metric.WithDescription("Per-repository analysis duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAnalysisDuration, err)
	}

	return &RunMetrics{events: events, repositories: repositories, duration: duration}, nil
}

// RecordEvents adds n processed events of the given kind.
func (m *RunMetrics) RecordEvents(ctx context.Context, kind string, n int64) {
	if m == nil || n == 0 {
		return
	}

	m.events.Add(ctx, n, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordRepository counts one repository outcome.
func (m *RunMetrics) RecordRepository(ctx context.Context, outcome string) {
	if m == nil {
		return
	}

	m.repositories.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordAnalysis records how long one repository took to analyze.
func (m *RunMetrics) RecordAnalysis(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}

	m.duration.Record(ctx, d.Seconds())
}
