// Package report turns aggregated repository state into the flat metric
// reports written by the CLI, and reads them back for rendering.
package report

import (
	"maps"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

// DateLayout is the layout of window bounds in the run configuration.
const DateLayout = "2006-01-02T15:04:05"

// Values maps a metric name to a scalar or nil.
type Values map[string]any

// CommitMetadata identifies the first and last commits of a repository.
type CommitMetadata struct {
	FirstCommit     *string `json:"first_commit" yaml:"first_commit"`
	LastCommit      *string `json:"last_commit" yaml:"last_commit"`
	FirstCommitDate *string `json:"first_commit_date" yaml:"first_commit_date"`
	LastCommitDate  *string `json:"last_commit_date" yaml:"last_commit_date"`
}

// RepositoryMetrics is the metrics block of one repository.
type RepositoryMetrics struct {
	Metrics  Values         `json:"metrics" yaml:"metrics"`
	Metadata CommitMetadata `json:"metadata" yaml:"metadata"`
}

// Compute evaluates the whole catalogue against agg.
func Compute(agg *aggregator.Aggregator) RepositoryMetrics {
	input := Input{Aggregator: agg, Days: agg.WindowDays()}
	values := make(Values, len(catalogue.Names()))

	for _, v := range catalogue.ComputeAll(input) {
		values[v.Name] = v.Value
	}

	return RepositoryMetrics{
		Metrics:  values,
		Metadata: commitMetadata(agg.AnalysisMetadata()),
	}
}

func commitMetadata(meta aggregator.Metadata) CommitMetadata {
	var out CommitMetadata

	if meta.First != nil {
		out.FirstCommit = ptr(meta.First.ID)
		out.FirstCommitDate = ptr(events.FormatDate(meta.First.Date))
	}

	if meta.Last != nil {
		out.LastCommit = ptr(meta.Last.ID)
		out.LastCommitDate = ptr(events.FormatDate(meta.Last.Date))
	}

	return out
}

// Package is the report entry of one SBOM package. Metrics is nil when the
// package has no analyzable repository.
type Package struct {
	Metrics    Values          `json:"metrics" yaml:"metrics"`
	Metadata   *CommitMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Repository string          `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// MarshalYAML writes nil metrics as null rather than an empty mapping.
func (p Package) MarshalYAML() (any, error) {
	var metrics any
	if p.Metrics != nil {
		metrics = p.Metrics
	}

	return struct {
		Metrics    any             `yaml:"metrics"`
		Metadata   *CommitMetadata `yaml:"metadata,omitempty"`
		Repository string          `yaml:"repository,omitempty"`
	}{metrics, p.Metadata, p.Repository}, nil
}

// Configuration records the analysis settings of a run.
type Configuration struct {
	FromDate                string     `json:"from_date" yaml:"from_date"`
	ToDate                  string     `json:"to_date" yaml:"to_date"`
	CodeFilePattern         string     `json:"code_file_pattern" yaml:"code_file_pattern"`
	BinaryFilePattern       string     `json:"binary_file_pattern" yaml:"binary_file_pattern"`
	PonyThreshold           float64    `json:"pony_threshold" yaml:"pony_threshold"`
	ElephantThreshold       float64    `json:"elephant_threshold" yaml:"elephant_threshold"`
	DevCategoriesThresholds [2]float64 `json:"dev_categories_thresholds" yaml:"dev_categories_thresholds"`
}

// ConfigurationFrom describes aggregator settings.
func ConfigurationFrom(s aggregator.Settings) Configuration {
	return Configuration{
		FromDate:                s.From.Format(DateLayout),
		ToDate:                  s.To.Format(DateLayout),
		CodeFilePattern:         s.CodePattern,
		BinaryFilePattern:       s.BinaryPattern,
		PonyThreshold:           s.PonyThreshold,
		ElephantThreshold:       s.ElephantThreshold,
		DevCategoriesThresholds: [2]float64{s.RegularThreshold, s.CasualThreshold},
	}
}

// RunMetadata describes one run.
type RunMetadata struct {
	Version       string        `json:"version" yaml:"version"`
	RunID         string        `json:"run_id" yaml:"run_id"`
	StartedAt     string        `json:"started_at" yaml:"started_at"`
	FinishedAt    string        `json:"finished_at" yaml:"finished_at"`
	Configuration Configuration `json:"configuration" yaml:"configuration"`
}

// PackageReport is the document produced for an SBOM.
type PackageReport struct {
	Packages map[string]Package `json:"packages" yaml:"packages"`
	Metadata RunMetadata        `json:"metadata" yaml:"metadata"`
}

// Assemble maps every SBOM package to its repository metrics. Packages
// without a repository, or whose repository produced no metrics, get a nil
// metrics block.
func Assemble(packages map[string]string, repositories map[string]RepositoryMetrics) map[string]Package {
	out := make(map[string]Package, len(packages))

	for id, repo := range packages {
		rm, ok := repositories[repo]
		if repo == "" || !ok {
			out[id] = Package{}

			continue
		}

		meta := rm.Metadata
		out[id] = Package{Metrics: rm.Metrics, Metadata: &meta, Repository: repo}
	}

	return out
}

// PackageIDs returns the package identifiers in sorted order.
func (r PackageReport) PackageIDs() []string {
	return slices.Sorted(maps.Keys(r.Packages))
}

// Timestamp formats t the way run metadata records it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ptr[T any](v T) *T {
	return &v
}
