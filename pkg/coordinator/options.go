package coordinator

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
)

// Defaults.
const (
	DefaultPollInterval      = 25 * time.Second
	DefaultRepositoryTimeout = time.Hour
	DefaultReadyAfter        = 7 * 24 * time.Hour
	DefaultWorkers           = 4
)

const tracerName = "healthfang/coordinator"

type options struct {
	pollInterval time.Duration
	timeout      time.Duration
	readyAfter   time.Duration
	workers      int
	aggregator   []aggregator.Option
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      *observability.RunMetrics
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		pollInterval: DefaultPollInterval,
		timeout:      DefaultRepositoryTimeout,
		readyAfter:   DefaultReadyAfter,
		workers:      DefaultWorkers,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
}

// Option configures an Analyzer or a Coordinator.
type Option func(*options)

// WithPollInterval sets the pause between readiness rounds.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRepositoryTimeout bounds how long readiness is awaited.
func WithRepositoryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithReadyAfter sets how recent a task's last run must be.
func WithReadyAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readyAfter = d
		}
	}
}

// WithWorkers caps concurrent repository analyses.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithAggregatorOptions configures every per-repository aggregator.
func WithAggregatorOptions(opts ...aggregator.Option) Option {
	return func(o *options) {
		o.aggregator = append(o.aggregator, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run and repository spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *observability.RunMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
