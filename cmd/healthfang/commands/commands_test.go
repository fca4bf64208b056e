package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/config"
	"github.com/Sumatoshi-tech/healthfang/pkg/coordinator"
	"github.com/Sumatoshi-tech/healthfang/pkg/events"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/source"
)

const (
	testRepo      = "https://github.com/example/project"
	testPackageID = "SPDXRef-Package-project"
	testFromDate  = "2024-01-01"
	testToDate    = "2024-06-30"
)

const unmappedSBOM = `{
  "spdxVersion": "SPDX-2.3",
  "dataLicense": "CC0-1.0",
  "SPDXID": "SPDXRef-DOCUMENT",
  "name": "unmapped",
  "documentNamespace": "https://example.com/spdx/unmapped",
  "creationInfo": {"created": "2024-01-01T00:00:00Z", "creators": ["Tool: test"]},
  "packages": [
    {"SPDXID": "SPDXRef-Package-tarball", "name": "tarball", "downloadLocation": "https://example.com/t-1.0.tar.gz"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func writeEvents(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer

	for i, author := range []string{"A <a@x.com>", "B <b@y.com>", "A <a@x.com>"} {
		ev, err := events.New(events.TypeCommit, events.CommitData{
			Author:     author,
			Commit:     string(rune('a' + i)),
			CommitDate: "2024-03-0" + string(rune('1'+i)) + "T10:00:00+00:00",
			Message:    "change",
		})
		require.NoError(t, err)

		ev.Source = testRepo
		ev.Time = "2024-03-01T10:00:00Z"

		require.NoError(t, json.NewEncoder(&buf).Encode(ev))
	}

	return writeFile(t, "events.ndjson", buf.String())
}

// writeReport analyzes the sample events and stores a package report.
func writeReport(t *testing.T) string {
	t.Helper()

	from, err := time.Parse(time.DateOnly, testFromDate)
	require.NoError(t, err)

	to, err := time.Parse(time.DateOnly, testToDate)
	require.NoError(t, err)

	analyzer, err := coordinator.NewAnalyzer(source.NewFile(writeEvents(t)),
		coordinator.WithAggregatorOptions(aggregator.WithWindow(from, to)))
	require.NoError(t, err)

	rm, err := analyzer.Analyze(context.Background(), testRepo)
	require.NoError(t, err)

	rep := &report.PackageReport{
		Packages: report.Assemble(map[string]string{testPackageID: testRepo}, map[string]report.RepositoryMetrics{testRepo: rm}),
		Metadata: report.RunMetadata{
			Version:       "test",
			RunID:         "run-1",
			StartedAt:     report.Timestamp(to),
			FinishedAt:    report.Timestamp(to),
			Configuration: report.ConfigurationFrom(analyzer.Settings()),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.NewJSONCodec().Encode(&buf, rep))

	return writeFile(t, "report.json", buf.String())
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestAnalyzeCommand_WritesMetrics(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewAnalyzeCommand(), writeEvents(t),
		"--repository", testRepo, "--from-date", testFromDate, "--to-date", testToDate)
	require.NoError(t, err)

	var rm struct {
		Metrics map[string]any `json:"metrics"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &rm))
	assert.InDelta(t, 3, rm.Metrics["total_commits"], 0)
	assert.InDelta(t, 2, rm.Metrics["total_contributors"], 0)
	assert.InDelta(t, 1, rm.Metrics["pony_factor"], 0)
}

func TestAnalyzeCommand_OtherRepositoryIsEmpty(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewAnalyzeCommand(), writeEvents(t),
		"--repository", "https://github.com/example/other", "--from-date", testFromDate, "--to-date", testToDate,
		"--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "total_commits: 0")
}

func TestAnalyzeCommand_WritesOutputFile(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "metrics.txt")

	_, err := execute(t, NewAnalyzeCommand(), writeEvents(t),
		"--from-date", testFromDate, "--to-date", testToDate, "--format", "text", "-o", output)
	require.NoError(t, err)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), "events.ndjson")
}

func TestAnalyzeCommand_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown format", []string{"--format", "xml"}, report.ErrUnsupportedFormat},
		{"descending dev categories", []string{"--dev-categories-thresholds", "0.9,0.5"}, config.ErrInvalidDevCategories},
		{"pony threshold above one", []string{"--pony-threshold", "1.5"}, config.ErrInvalidThreshold},
		{"bad date", []string{"--from-date", "01/01/2024"}, config.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, NewAnalyzeCommand(), append([]string{writeEvents(t)}, tt.args...)...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewAnalyzeCommand(), filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCommand_BindsFlags(t *testing.T) {
	t.Parallel()

	var (
		got     *config.Config
		gotPath string
	)

	cmd := buildRunCommand(config.New(), func(_ *cobra.Command, cfg *config.Config, _ *runOptions, sbomPath string) error {
		got = cfg
		gotPath = sbomPath

		return nil
	})

	_, err := execute(t, cmd, "sbom.json",
		"--grimoirelab-url", "http://backend:9000",
		"--opensearch-index", "git",
		"--verify-certs",
		"--workers", "7",
		"--repository-timeout", "30m",
		"--dev-categories-thresholds", "0.7,0.9",
		"--metrics-addr", ":9464",
	)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "sbom.json", gotPath)
	assert.Equal(t, "http://backend:9000", got.GrimoireLab.URL)
	assert.Equal(t, "git", got.OpenSearch.Index)
	assert.True(t, got.OpenSearch.VerifyCerts)
	assert.Equal(t, 7, got.Coordinator.Workers)
	assert.Equal(t, 30*time.Minute, got.Coordinator.RepositoryTimeout)
	assert.Equal(t, []float64{0.7, 0.9}, got.Analysis.DevCategoriesThresholds)
	assert.Equal(t, ":9464", got.Telemetry.MetricsAddr)
}

func TestRunCommand_ConfigFile(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, "healthfang.yaml", `
opensearch:
  index: from-file
coordinator:
  workers: 2
`)

	var got *config.Config

	cmd := buildRunCommand(config.New(), func(_ *cobra.Command, cfg *config.Config, _ *runOptions, _ string) error {
		got = cfg

		return nil
	})

	_, err := execute(t, cmd, "sbom.json", "--config", cfgPath, "--workers", "3")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "from-file", got.OpenSearch.Index)
	assert.Equal(t, 3, got.Coordinator.Workers, "flags override the file")
	assert.Equal(t, config.DefaultOpenSearchURL, got.OpenSearch.URL)
}

func TestRunCommand_NoRepositories(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewRunCommand(), writeFile(t, "sbom.spdx.json", unmappedSBOM))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunCommand_RequiresSBOM(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewRunCommand())
	require.Error(t, err)
}

func TestRenderCommand_WritesHTML(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "dashboard.html")

	_, err := execute(t, NewRenderCommand(), writeReport(t), "--output", output)
	require.NoError(t, err)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<html")
	assert.Contains(t, string(content), testPackageID)
}

func TestRenderCommand_RequiresOutput(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewRenderCommand(), writeReport(t))
	require.ErrorIs(t, err, ErrNoOutputFile)
}

func TestValidateCommand_ValidReport(t *testing.T) {
	t.Parallel()

	path := writeReport(t)

	out, err := execute(t, NewValidateCommand(), path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, path+" is a valid report")
}

func TestValidateCommand_InvalidReport(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "report.yaml", "packages:\n  x:\n    metrics:\n      total_commits: many\n")

	out, err := execute(t, NewValidateCommand(), path, "--no-color")
	require.ErrorIs(t, err, report.ErrInvalidReport)
	assert.Contains(t, out, "✗")
}

func TestMCPCommand_Exists(t *testing.T) {
	t.Parallel()

	cmd := NewMCPCommand()
	assert.Equal(t, "mcp", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	flag := cmd.Flags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
