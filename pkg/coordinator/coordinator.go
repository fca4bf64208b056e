// Package coordinator drives an SBOM run: it schedules every repository on
// the analysis backend, waits for their collection tasks, analyzes the
// ready ones and assembles the package report.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/healthfang/pkg/grimoirelab"
	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/sbom"
	"github.com/Sumatoshi-tech/healthfang/pkg/source"
	"github.com/Sumatoshi-tech/healthfang/pkg/version"
)

// ErrSchedule wraps the first scheduling failure, which aborts the run.
var ErrSchedule = errors.New("schedule repository")

// Backend is the analysis backend the coordinator drives.
type Backend interface {
	ScheduleRepository(ctx context.Context, uri, datasource, category string) error
	RepositoryTask(ctx context.Context, uri string) (grimoirelab.Task, error)
}

// Coordinator runs SBOM analyses.
type Coordinator struct {
	backend  Backend
	analyzer *Analyzer
	opts     options
}

// New creates a Coordinator reading events from src.
func New(backend Backend, src source.Source, opts ...Option) (*Coordinator, error) {
	analyzer, err := NewAnalyzer(src, opts...)
	if err != nil {
		return nil, err
	}

	return &Coordinator{backend: backend, analyzer: analyzer, opts: analyzer.opts}, nil
}

// Run analyzes the repositories of packages and returns the package
// report. Packages whose repository could not be analyzed get null metrics.
func (c *Coordinator) Run(ctx context.Context, packages sbom.Packages) (*report.PackageReport, error) {
	started := c.opts.now()
	runID := uuid.NewString()

	ctx, span := c.opts.tracer.Start(ctx, "healthfang.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("packages", len(packages)),
	))
	defer span.End()

	repositories := packages.Repositories()

	err := c.Schedule(ctx, repositories)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scheduling failed")

		return nil, err
	}

	results, err := c.Collect(ctx, repositories)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection interrupted")

		return nil, err
	}

	return &report.PackageReport{
		Packages: report.Assemble(packages.Map(), results),
		Metadata: report.RunMetadata{
			Version:       version.String(),
			RunID:         runID,
			StartedAt:     report.Timestamp(started),
			FinishedAt:    report.Timestamp(c.opts.now()),
			Configuration: report.ConfigurationFrom(c.analyzer.Settings()),
		},
	}, nil
}

// Schedule registers every repository for git commit collection.
func (c *Coordinator) Schedule(ctx context.Context, repositories []string) error {
	c.opts.logger.InfoContext(ctx, "Scheduling tasks", "repositories", len(repositories))

	for _, repo := range repositories {
		c.opts.logger.DebugContext(ctx, "Scheduling task to fetch commits", "repository", repo)

		err := c.backend.ScheduleRepository(ctx, repo, grimoirelab.DatasourceGit, grimoirelab.CategoryCommit)
		if err != nil {
			c.opts.logger.ErrorContext(ctx, "Error scheduling task", "repository", repo, "error", err)

			return fmt.Errorf("%w %s: %w", ErrSchedule, repo, err)
		}
	}

	return nil
}

// Collect polls until every repository is ready or the repository timeout
// passes, analyzing each one as soon as it is ready. Only a cancelled
// context fails the collection.
func (c *Coordinator) Collect(ctx context.Context, repositories []string) (map[string]report.RepositoryMetrics, error) {
	c.opts.logger.InfoContext(ctx, "Generating metrics")

	deadline := c.opts.now().Add(c.opts.timeout)
	after := c.opts.now().Add(-c.opts.readyAfter)
	pending := slices.Clone(repositories)

	var mu sync.Mutex

	results := make(map[string]report.RepositoryMetrics, len(repositories))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.opts.workers)

	for len(pending) > 0 {
		var waiting []string

		for _, repo := range pending {
			if !c.ready(ctx, repo, after) {
				waiting = append(waiting, repo)

				continue
			}

			group.Go(func() error {
				rm, err := c.analyzer.Analyze(groupCtx, repo)
				if err != nil {
					if ctxErr := groupCtx.Err(); ctxErr != nil {
						return ctxErr
					}

					c.opts.logger.WarnContext(ctx, "Could not compute metrics", "repository", repo, "error", err)
					c.opts.metrics.RecordRepository(ctx, observability.OutcomeError)

					return nil
				}

				mu.Lock()
				results[repo] = rm
				mu.Unlock()

				return nil
			})
		}

		pending = waiting

		if len(pending) == 0 || !c.opts.now().Before(deadline) {
			break
		}

		c.opts.logger.InfoContext(ctx, "Waiting for repositories to be ready", "pending", len(pending))
		c.opts.logger.DebugContext(ctx, "Repositories not ready", "repositories", pending)

		sleepErr := sleep(ctx, c.opts.pollInterval)
		if sleepErr != nil {
			return nil, errors.Join(sleepErr, group.Wait())
		}
	}

	for _, repo := range pending {
		c.opts.logger.WarnContext(ctx, "Timeout waiting for repository to be ready", "repository", repo)
		c.opts.metrics.RecordRepository(ctx, observability.OutcomeTimeout)
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// ready reports whether the collection task of repo has finished. Failed
// tasks count as ready so that partial data is still reported.
func (c *Coordinator) ready(ctx context.Context, repo string, after time.Time) bool {
	task, err := c.backend.RepositoryTask(ctx, repo)
	if err != nil {
		c.opts.logger.WarnContext(ctx, "Error checking repository status", "repository", repo, "error", err)

		return false
	}

	if task.Failed() {
		c.opts.logger.WarnContext(ctx, "Metrics might be incomplete", "repository", repo)
		c.opts.metrics.RecordRepository(ctx, observability.OutcomeFailedTask)

		return true
	}

	if !task.LastRun.IsZero() && task.LastRun.After(after) {
		c.opts.metrics.RecordRepository(ctx, observability.OutcomeReady)

		return true
	}

	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
