package report_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/events"
	"github.com/Sumatoshi-tech/healthfang/pkg/metrics"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
)

// Test constants to avoid magic strings.
const (
	testRepo      = "https://github.com/example/project"
	testPackageID = "SPDXRef-Package-project"
	testOrphanID  = "SPDXRef-Package-orphan"
)

var testWindowEnd = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func sampleAggregator(t *testing.T) *aggregator.Aggregator {
	t.Helper()

	agg, err := aggregator.New(aggregator.WithWindow(testWindowEnd.AddDate(0, 0, -20), testWindowEnd))
	require.NoError(t, err)

	first, err := events.New(events.TypeCommit, events.CommitData{
		Author:     "A <a@x.com>",
		Commit:     "c1",
		CommitDate: "2024-06-20T10:00:00+02:00",
		Message:    "fix",
		Refs:       []string{"refs/heads/main"},
		Files:      []events.FileChange{{File: "main.go", Added: events.Lines(5), Removed: events.Lines(1)}},
	})
	require.NoError(t, err)

	second, err := events.New(events.TypeCommit, events.CommitData{
		Author:     "B <b@y.com>",
		Commit:     "c2",
		CommitDate: "2024-06-25T10:00:00+00:00",
		Message:    "docs",
	})
	require.NoError(t, err)

	license, err := events.New(events.TypeFileAdded, events.FileData{Filename: "LICENSE"})
	require.NoError(t, err)

	agg.Process(slices.Values([]events.Event{first, second, license}))

	return agg
}

func sampleReport(t *testing.T) *report.PackageReport {
	t.Helper()

	agg := sampleAggregator(t)
	rm := report.Compute(agg)

	return &report.PackageReport{
		Packages: report.Assemble(
			map[string]string{testPackageID: testRepo, testOrphanID: ""},
			map[string]report.RepositoryMetrics{testRepo: rm},
		),
		Metadata: report.RunMetadata{
			Version:       "test",
			RunID:         "run-1",
			StartedAt:     report.Timestamp(testWindowEnd),
			FinishedAt:    report.Timestamp(testWindowEnd.Add(time.Minute)),
			Configuration: report.ConfigurationFrom(agg.Settings()),
		},
	}
}

func TestComputeFlattensCatalogue(t *testing.T) {
	t.Parallel()

	rm := report.Compute(sampleAggregator(t))

	assert.Len(t, rm.Metrics, len(report.MetricNames()))
	assert.Equal(t, 2, rm.Metrics["total_commits"])
	assert.Equal(t, 2, rm.Metrics["total_contributors"])
	assert.Equal(t, 2, rm.Metrics["pony_factor"])
	assert.Equal(t, 1, rm.Metrics["file_types_code"])
	assert.Equal(t, 5, rm.Metrics["commit_size_added_lines"])
	assert.Equal(t, 1, rm.Metrics["active_branches"])
	assert.Equal(t, 4, rm.Metrics["days_since_last_commit"])
	assert.Equal(t, 1, rm.Metrics["found_files_license"])
	assert.InDelta(t, 3.5, rm.Metrics["message_size_mean"], 0.0001)
	assert.InDelta(t, 0.7, rm.Metrics["commits_per_week"], 0.0001)
	assert.Nil(t, rm.Metrics["commits_per_month"])
	assert.Nil(t, rm.Metrics["commits_per_year"])

	require.NotNil(t, rm.Metadata.FirstCommit)
	assert.Equal(t, "c1", *rm.Metadata.FirstCommit)
	assert.Equal(t, "2024-06-20T10:00:00+02:00", *rm.Metadata.FirstCommitDate)
	assert.Equal(t, "c2", *rm.Metadata.LastCommit)
	assert.Equal(t, "2024-06-25T10:00:00+00:00", *rm.Metadata.LastCommitDate)
}

func TestComputeEmptyAggregator(t *testing.T) {
	t.Parallel()

	agg, err := aggregator.New()
	require.NoError(t, err)

	rm := report.Compute(agg)

	assert.Nil(t, rm.Metrics["days_since_last_commit"])
	assert.NotNil(t, rm.Metrics["commits_per_year"])
	assert.Equal(t, report.CommitMetadata{}, rm.Metadata)
}

func TestCatalogueDescribesEveryMetric(t *testing.T) {
	t.Parallel()

	for _, name := range report.MetricNames() {
		m, ok := report.Describe(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, m.DisplayName(), name)
		assert.NotEmpty(t, m.Description(), name)
		assert.NotEmpty(t, m.Type(), name)
	}
}

func TestAssembleNullMetrics(t *testing.T) {
	t.Parallel()

	rep := sampleReport(t)

	orphan := rep.Packages[testOrphanID]
	assert.Nil(t, orphan.Metrics)
	assert.Nil(t, orphan.Metadata)
	assert.Empty(t, orphan.Repository)

	pkg := rep.Packages[testPackageID]
	assert.Equal(t, testRepo, pkg.Repository)
	require.NotNil(t, pkg.Metadata)

	var buf bytes.Buffer
	require.NoError(t, report.NewJSONCodec().Encode(&buf, rep))

	var raw struct {
		Packages map[string]map[string]any `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))

	orphanRaw := raw.Packages[testOrphanID]
	assert.Len(t, orphanRaw, 1)
	assert.Contains(t, orphanRaw, "metrics")
	assert.Nil(t, orphanRaw["metrics"])
}

func TestConfigurationFrom(t *testing.T) {
	t.Parallel()

	cfg := report.ConfigurationFrom(sampleAggregator(t).Settings())

	assert.Equal(t, "2024-06-10T00:00:00", cfg.FromDate)
	assert.Equal(t, "2024-06-30T00:00:00", cfg.ToDate)
	assert.Equal(t, aggregator.DefaultCodePattern, cfg.CodeFilePattern)
	assert.Equal(t, [2]float64{0.8, 0.95}, cfg.DevCategoriesThresholds)
}

func TestLoadPackageReportFormats(t *testing.T) {
	t.Parallel()

	rep := sampleReport(t)
	dir := t.TempDir()

	for _, codec := range []report.Codec{report.NewJSONCodec(), report.NewYAMLCodec()} {
		path := filepath.Join(dir, "report"+codec.Extension())

		var buf bytes.Buffer
		require.NoError(t, codec.Encode(&buf, rep))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		loaded, err := report.LoadPackageReport(path)
		require.NoError(t, err, path)

		assert.Equal(t, rep.Metadata, loaded.Metadata, path)
		assert.Equal(t, testRepo, loaded.Packages[testPackageID].Repository, path)
		assert.Nil(t, loaded.Packages[testOrphanID].Metrics, path)
	}
}

func TestYAMLCodecWritesNullMetrics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.NewYAMLCodec().Encode(&buf, sampleReport(t)))

	assert.Contains(t, buf.String(), "metrics: null")
	assert.NotContains(t, buf.String(), "metrics: {}")
}

func TestLoadPackageReportUnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := report.LoadPackageReport("report.txt")
	require.ErrorIs(t, err, report.ErrUnknownExtension)
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{"JSON": "json", " yml ": "yaml", "html": "plot", "text": "text"} {
		got, err := report.ValidateFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := report.ValidateFormat("xml")
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)
}

func TestTextRenderer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := report.NewTextRenderer(report.TextConfig{NoColor: true}).RenderPackages(&buf, sampleReport(t))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, testPackageID+" ("+testRepo+")")
	assert.Contains(t, out, "Pony factor")
	assert.Contains(t, out, string(metrics.RiskHigh))
	assert.Contains(t, out, "no repository metrics")
	assert.Contains(t, out, "last commit c2")
	assert.Contains(t, out, "run run-1")
	assert.Less(t, strings.Index(out, testOrphanID), strings.Index(out, testPackageID))
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "n/a", report.FormatValue(nil))
	assert.Equal(t, "1,234", report.FormatValue(1234))
	assert.Equal(t, "12", report.FormatValue(12.0))
	assert.Equal(t, "0.33", report.FormatValue(1.0/3.0))
}

func TestConcentrationRisk(t *testing.T) {
	t.Parallel()

	assert.Equal(t, metrics.RiskLow, report.ConcentrationRisk(0))
	assert.Equal(t, metrics.RiskCritical, report.ConcentrationRisk(1))
	assert.Equal(t, metrics.RiskHigh, report.ConcentrationRisk(2))
	assert.Equal(t, metrics.RiskMedium, report.ConcentrationRisk(4))
	assert.Equal(t, metrics.RiskLow, report.ConcentrationRisk(5))
}

func TestRenderPlot(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.WritePackageReport(&buf, sampleReport(t), report.FormatPlot))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Contributor concentration")
	assert.Contains(t, out, testPackageID)
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.NewJSONCodec().Encode(&buf, sampleReport(t)))

	violations, err := report.Validate(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = report.Validate([]byte(`{"packages": {"x": {"metrics": {"total_commits": "many"}}}}`))
	require.ErrorIs(t, err, report.ErrInvalidReport)
	assert.NotEmpty(t, violations)
}

func TestWriteRepositoryMetricsYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := report.WriteRepositoryMetrics(&buf, testRepo, report.Compute(sampleAggregator(t)), report.FormatYAML)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "total_commits: 2")
	assert.Contains(t, buf.String(), "commits_per_year: null")
	assert.Contains(t, buf.String(), "first_commit: c1")
}
