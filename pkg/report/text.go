package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/healthfang/pkg/metrics"
)

const (
	msgNoMetrics  = "no repository metrics"
	msgNullValue  = "n/a"
	floatDigits   = 2
	sectionFormat = "=== %s ==="
)

// TextConfig controls the text renderer.
type TextConfig struct {
	NoColor bool
}

// TextRenderer writes reports as terminal tables.
type TextRenderer struct {
	config TextConfig
}

// NewTextRenderer creates a TextRenderer.
func NewTextRenderer(config TextConfig) *TextRenderer {
	return &TextRenderer{config: config}
}

// RenderPackages writes one table per package, sorted by package id.
func (r *TextRenderer) RenderPackages(w io.Writer, rep *PackageReport) error {
	for _, id := range rep.PackageIDs() {
		pkg := rep.Packages[id]

		title := id
		if pkg.Repository != "" {
			title = id + " (" + pkg.Repository + ")"
		}

		var meta CommitMetadata
		if pkg.Metadata != nil {
			meta = *pkg.Metadata
		}

		err := r.RenderRepository(w, title, RepositoryMetrics{Metrics: pkg.Metrics, Metadata: meta})
		if err != nil {
			return err
		}
	}

	if rep.Metadata.RunID != "" {
		_, err := fmt.Fprintf(w, "run %s (version %s) %s .. %s\n",
			rep.Metadata.RunID, rep.Metadata.Version, rep.Metadata.StartedAt, rep.Metadata.FinishedAt)
		if err != nil {
			return fmt.Errorf("write run metadata: %w", err)
		}
	}

	return nil
}

// RenderRepository writes the metrics of one repository.
func (r *TextRenderer) RenderRepository(w io.Writer, title string, rm RepositoryMetrics) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, sectionFormat+"\n", title)

	if rm.Metrics == nil {
		sb.WriteString(msgNoMetrics + "\n\n")

		return r.flush(w, sb.String())
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Category", "Metric", "Value"})

	for _, name := range MetricNames() {
		value, ok := rm.Metrics[name]
		if !ok {
			continue
		}

		m, _ := Describe(name)
		tw.AppendRow(table.Row{m.Type(), m.DisplayName(), r.formatCell(rm.Metrics, name, value)})
	}

	sb.WriteString(tw.Render())
	sb.WriteString("\n")

	if rm.Metadata.LastCommit != nil && rm.Metadata.LastCommitDate != nil {
		fmt.Fprintf(&sb, "last commit %s at %s\n", *rm.Metadata.LastCommit, *rm.Metadata.LastCommitDate)
	}

	sb.WriteString("\n")

	return r.flush(w, sb.String())
}

func (r *TextRenderer) flush(w io.Writer, text string) error {
	_, err := io.WriteString(w, text)
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func (r *TextRenderer) formatCell(values Values, name string, value any) string {
	text := FormatValue(value)

	if name != "pony_factor" && name != "elephant_factor" {
		return text
	}

	factor, ok := factorValue(values, name)
	if !ok {
		return text
	}

	level := ConcentrationRisk(factor)

	return text + " " + r.colorize(string(level), level)
}

func (r *TextRenderer) colorize(text string, level metrics.RiskLevel) string {
	var c *color.Color

	switch level {
	case metrics.RiskCritical:
		c = color.New(color.FgRed, color.Bold)
	case metrics.RiskHigh:
		c = color.New(color.FgRed)
	case metrics.RiskMedium:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgGreen)
	}

	if r.config.NoColor {
		c.DisableColor()
	}

	return c.Sprint(text)
}

// FormatValue renders a metric value for humans. Nil renders as "n/a".
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return msgNullValue
	case int:
		return humanize.Comma(int64(v))
	case int64:
		return humanize.Comma(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
			return humanize.Comma(int64(v))
		}

		return humanize.CommafWithDigits(v, floatDigits)
	default:
		return fmt.Sprint(v)
	}
}
