// Package metrics provides interfaces for defining self-contained, reusable metrics.
//
// Each metric is a computation unit that:
//   - Declares its input requirements
//   - Computes a typed output
//   - Provides metadata for documentation and serialization
//
// Registries keep metrics in registration order so reports list them stably.
package metrics

import (
	"errors"
	"fmt"
)

// ErrDuplicateMetric is returned when a metric name is registered twice.
var ErrDuplicateMetric = errors.New("duplicate metric")

// Metric is the core interface that all metrics must implement.
// Each metric is a self-contained computation with metadata.
type Metric[In, Out any] interface {
	// Name returns the machine-readable identifier (snake_case, unique).
	Name() string

	// DisplayName returns a human-readable name for UI/reports.
	DisplayName() string

	// Description returns what the metric measures and how to read it.
	Description() string

	// Type returns the metric category (e.g., "activity", "community", "risk").
	Type() string

	// Compute calculates the metric value from input data.
	Compute(input In) Out
}

// RiskLevel represents severity levels.
type RiskLevel string

// Risk level constants.
const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// MetricMeta holds the common metadata for a metric.
// Embed this in metric implementations to satisfy metadata methods.
type MetricMeta struct {
	MetricName        string
	MetricDisplayName string
	MetricDescription string
	MetricType        string
}

// Name returns the machine-readable identifier.
func (m MetricMeta) Name() string { return m.MetricName }

// DisplayName returns a human-readable name for UI/reports.
func (m MetricMeta) DisplayName() string { return m.MetricDisplayName }

// Description returns detailed documentation.
func (m MetricMeta) Description() string { return m.MetricDescription }

// Type returns the metric category.
func (m MetricMeta) Type() string { return m.MetricType }

// Func adapts a plain function into a Metric.
type Func[In, Out any] struct {
	MetricMeta

	Fn func(In) Out
}

// Compute calls the wrapped function.
func (f Func[In, Out]) Compute(input In) Out {
	return f.Fn(input)
}

// Value is a computed metric paired with its name.
type Value[Out any] struct {
	Name  string
	Value Out
}

// Registry holds an ordered collection of metrics over the same input.
type Registry[In, Out any] struct {
	order   []string
	metrics map[string]Metric[In, Out]
}

// NewRegistry creates an empty metric registry.
func NewRegistry[In, Out any]() *Registry[In, Out] {
	return &Registry[In, Out]{metrics: make(map[string]Metric[In, Out])}
}

// Register adds a metric to the registry.
func (r *Registry[In, Out]) Register(m Metric[In, Out]) error {
	if _, exists := r.metrics[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}

	r.order = append(r.order, m.Name())
	r.metrics[m.Name()] = m

	return nil
}

// MustRegister is Register for package-level catalogues; it panics on duplicates.
func (r *Registry[In, Out]) MustRegister(ms ...Metric[In, Out]) *Registry[In, Out] {
	for _, m := range ms {
		err := r.Register(m)
		if err != nil {
			panic(err)
		}
	}

	return r
}

// Get retrieves a metric by name.
func (r *Registry[In, Out]) Get(name string) (Metric[In, Out], bool) {
	m, ok := r.metrics[name]

	return m, ok
}

// Names returns all registered metric names in registration order.
func (r *Registry[In, Out]) Names() []string {
	return append([]string(nil), r.order...)
}

// ComputeAll evaluates every metric against input in registration order.
func (r *Registry[In, Out]) ComputeAll(input In) []Value[Out] {
	values := make([]Value[Out], 0, len(r.order))

	for _, name := range r.order {
		values = append(values, Value[Out]{Name: name, Value: r.metrics[name].Compute(input)})
	}

	return values
}
