package coordinator

import (
	"context"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/events"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/source"
)

// Event kinds scanned per repository.
const (
	KindCommit = "commit"
	KindFile   = "file"
)

// Analyzer computes the metrics of one repository from an event source.
type Analyzer struct {
	source source.Source
	opts   options
	// settings are resolved once so every repository shares one window.
	settings aggregator.Settings
}

// NewAnalyzer validates the aggregator options and pins the analysis window.
func NewAnalyzer(src source.Source, opts ...Option) (*Analyzer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	resolved, err := aggregator.New(o.aggregator...)
	if err != nil {
		return nil, fmt.Errorf("configure aggregator: %w", err)
	}

	from, to := resolved.Window()
	o.aggregator = append(o.aggregator, aggregator.WithWindow(from, to))

	return &Analyzer{source: src, opts: o, settings: resolved.Settings()}, nil
}

// Settings returns the effective aggregator settings.
func (a *Analyzer) Settings() aggregator.Settings {
	return a.settings
}

// Analyze scans the commit and file events of repository and returns its
// metrics. An empty repository analyzes every event of the source.
func (a *Analyzer) Analyze(ctx context.Context, repository string) (report.RepositoryMetrics, error) {
	start := a.opts.now()

	ctx, span := a.opts.tracer.Start(ctx, "healthfang.analyze_repository",
		trace.WithAttributes(attribute.String("repository", repository)))
	defer span.End()

	agg, err := aggregator.New(a.opts.aggregator...)
	if err != nil {
		return report.RepositoryMetrics{}, fmt.Errorf("configure aggregator: %w", err)
	}

	from, to := agg.Window()

	scans := []struct {
		kind  string
		types []string
	}{
		{KindCommit, events.CommitTypes()},
		{KindFile, events.FileTypes()},
	}

	for _, scan := range scans {
		query := source.Query{Repository: repository, Types: scan.types, From: from, To: to}

		var (
			scanErr error
			count   int64
		)

		agg.Process(counted(source.Values(a.source.Events(ctx, query), &scanErr), &count))
		a.opts.metrics.RecordEvents(ctx, scan.kind, count)

		if scanErr != nil {
			span.RecordError(scanErr)
			span.SetStatus(codes.Error, "scan failed")

			return report.RepositoryMetrics{}, fmt.Errorf("scan %s events of %q: %w", scan.kind, repository, scanErr)
		}

		a.opts.logger.DebugContext(ctx, "scanned events", "repository", repository, "kind", scan.kind, "events", count)
	}

	span.SetAttributes(attribute.Int("commits", agg.CommitCount()))
	a.opts.metrics.RecordAnalysis(ctx, a.opts.now().Sub(start))

	return report.Compute(agg), nil
}

func counted(seq iter.Seq[events.Event], n *int64) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		for ev := range seq {
			*n++

			if !yield(ev) {
				return
			}
		}
	}
}
