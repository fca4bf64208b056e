package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/healthfang/pkg/aggregator"
	"github.com/Sumatoshi-tech/healthfang/pkg/coordinator"
	"github.com/Sumatoshi-tech/healthfang/pkg/report"
	"github.com/Sumatoshi-tech/healthfang/pkg/source"
)

// Tool names.
const (
	ToolNameMetrics  = "healthfang_metrics"
	ToolNameDescribe = "healthfang_describe_metrics"
)

const (
	metricsToolDescription = "Compute project health metrics (pony and elephant factors, developer " +
		"categories, commit cadence, growth, governance files) from a repository-activity event dump. " +
		"Accepts an absolute path to a JSON, NDJSON or LZ4-compressed events file."

	describeToolDescription = "Describe the project health metrics healthfang reports. " +
		"Accepts an optional list of metric names."
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyEventsPath     = errors.New("events_path parameter is required and must not be empty")
	ErrEventsPathNotAbs    = errors.New("events_path must be an absolute path")
	ErrEventsFileNotFound  = errors.New("events file does not exist")
	ErrUnknownMetric       = errors.New("unknown metric")
	ErrInvalidToolArgument = errors.New("invalid argument")
)

// MetricsInput is the input schema of the healthfang_metrics tool.
type MetricsInput struct {
	EventsPath        string  `json:"events_path"                  jsonschema:"absolute path to the events dump"`
	Repository        string  `json:"repository,omitempty"         jsonschema:"only use events whose source is this repository URI"`
	FromDate          string  `json:"from_date,omitempty"          jsonschema:"window start as YYYY-MM-DD (default: one year before to_date)"`
	ToDate            string  `json:"to_date,omitempty"            jsonschema:"window end as YYYY-MM-DD (default: now)"`
	PonyThreshold     float64 `json:"pony_threshold,omitempty"     jsonschema:"pony factor threshold in (0, 1] (default 0.5)"`
	ElephantThreshold float64 `json:"elephant_threshold,omitempty" jsonschema:"elephant factor threshold in (0, 1] (default 0.5)"`
}

// DescribeInput is the input schema of the healthfang_describe_metrics tool.
type DescribeInput struct {
	Names []string `json:"names,omitempty" jsonschema:"metric names to describe (default: all)"`
}

// MetricDescription documents one reported metric.
type MetricDescription struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolOutput wraps structured tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}

func (s *Server) handleMetrics(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input MetricsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateEventsPath(input.EventsPath)
	if err != nil {
		return errorResult(err)
	}

	opts, err := aggregatorOptions(input)
	if err != nil {
		return errorResult(err)
	}

	analyzer, err := coordinator.NewAnalyzer(source.NewFile(input.EventsPath),
		coordinator.WithAggregatorOptions(opts...),
		coordinator.WithLogger(s.logger),
		coordinator.WithMetrics(s.deps.Metrics),
	)
	if err != nil {
		return errorResult(err)
	}

	rm, err := analyzer.Analyze(ctx, input.Repository)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(rm)
}

func validateEventsPath(path string) error {
	if path == "" {
		return ErrEmptyEventsPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrEventsPathNotAbs, path)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrEventsFileNotFound, path)
	}

	return nil
}

func aggregatorOptions(input MetricsInput) ([]aggregator.Option, error) {
	from, err := parseToolDate("from_date", input.FromDate)
	if err != nil {
		return nil, err
	}

	to, err := parseToolDate("to_date", input.ToDate)
	if err != nil {
		return nil, err
	}

	opts := []aggregator.Option{aggregator.WithWindow(from, to)}

	if input.PonyThreshold != 0 {
		opts = append(opts, aggregator.WithPonyThreshold(input.PonyThreshold))
	}

	if input.ElephantThreshold != 0 {
		opts = append(opts, aggregator.WithElephantThreshold(input.ElephantThreshold))
	}

	return opts, nil
}

func parseToolDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	t, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s=%q is not YYYY-MM-DD", ErrInvalidToolArgument, name, value)
	}

	return t, nil
}

func handleDescribe(
	_ context.Context, _ *mcpsdk.CallToolRequest, input DescribeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	names := input.Names
	if len(names) == 0 {
		names = report.MetricNames()
	}

	out := make([]MetricDescription, 0, len(names))

	for _, name := range names {
		m, ok := report.Describe(name)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s", ErrUnknownMetric, name))
		}

		out = append(out, MetricDescription{
			Name:        m.Name(),
			DisplayName: m.DisplayName(),
			Type:        m.Type(),
			Description: m.Description(),
		})
	}

	return jsonResult(out)
}
