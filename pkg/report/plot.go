package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	pageTitle       = "Project health"
	chartWidth      = "1200px"
	chartHeight     = "420px"
	xAxisRotate     = 30
	stackCategories = "categories"
	stackFiles      = "files"
)

// Series colors.
const (
	colorPrimary   = "#5470c6"
	colorSecondary = "#91cc75"
	colorWarning   = "#fac858"
	colorDanger    = "#ee6666"
)

type barSeries struct {
	name   string
	metric string
	color  string
	stack  string
}

// RenderPlot writes an HTML dashboard comparing the packages of rep.
// Packages without metrics are left out.
func RenderPlot(w io.Writer, rep *PackageReport) error {
	var labels []string

	var rows []Values

	for _, id := range rep.PackageIDs() {
		pkg := rep.Packages[id]
		if pkg.Metrics == nil {
			continue
		}

		labels = append(labels, id)
		rows = append(rows, pkg.Metrics)
	}

	page := components.NewPage()
	page.PageTitle = pageTitle
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(
		buildBar("Contributor concentration", "Lower factors mean fewer people or organizations carry the project",
			labels, rows, []barSeries{
				{name: "Pony factor", metric: "pony_factor", color: colorDanger},
				{name: "Elephant factor", metric: "elephant_factor", color: colorWarning},
			}),
		buildBar("Developer categories", "Core, regular and casual contributors",
			labels, rows, []barSeries{
				{name: "Core", metric: "developer_categories_core", color: colorPrimary, stack: stackCategories},
				{name: "Regular", metric: "developer_categories_regular", color: colorSecondary, stack: stackCategories},
				{name: "Casual", metric: "developer_categories_casual", color: colorWarning, stack: stackCategories},
			}),
		buildBar("Activity", "Commits over the window and the last 90 days",
			labels, rows, []barSeries{
				{name: "Total commits", metric: "total_commits", color: colorPrimary},
				{name: "Recent commits", metric: "recent_commits", color: colorSecondary},
			}),
		buildBar("Touched files", "File classification across commits",
			labels, rows, []barSeries{
				{name: "Code", metric: "file_types_code", color: colorPrimary, stack: stackFiles},
				{name: "Binary", metric: "file_types_binary", color: colorDanger, stack: stackFiles},
				{name: "Other", metric: "file_types_other", color: colorSecondary, stack: stackFiles},
			}),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func buildBar(title, subtitle string, labels []string, rows []Values, series []barSeries) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle, Left: "center"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "12%"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate}}),
	)

	bar.SetXAxis(labels)

	for _, s := range series {
		data := make([]opts.BarData, len(rows))
		for i, row := range rows {
			data[i] = opts.BarData{Value: row[s.metric]}
		}

		seriesOpts := []charts.SeriesOpts{charts.WithItemStyleOpts(opts.ItemStyle{Color: s.color})}
		if s.stack != "" {
			seriesOpts = append(seriesOpts, charts.WithBarChartOpts(opts.BarChart{Stack: s.stack}))
		}

		bar.AddSeries(s.name, data, seriesOpts...)
	}

	return bar
}
