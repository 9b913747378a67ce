package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive page with the trajectory over the path
// and the covariance trace per tick.
func (r *Recorder) RenderHTML(w io.Writer) error {
	samples := r.Samples()
	path := r.Path()

	pathData := make([]opts.ScatterData, 0, len(path))
	for _, wp := range path {
		pathData = append(pathData, opts.ScatterData{Value: []interface{}{wp.X, wp.Y}})
	}

	var (
		poseData  []opts.ScatterData
		ticks     []string
		traceData []opts.LineData
	)
	for _, s := range samples {
		if !s.Ready {
			continue
		}
		poseData = append(poseData, opts.ScatterData{Value: []interface{}{s.Pose.X, s.Pose.Y, s.Pose.Heading}})
		ticks = append(ticks, fmt.Sprintf("%d", s.Seq))
		traceData = append(traceData, opts.LineData{Value: s.Trace})
	}
	if len(poseData) == 0 {
		return ErrNoSamples
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "intnav run", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trajectory", Subtitle: fmt.Sprintf("estimates=%d waypoints=%d", len(poseData), len(pathData))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("path", pathData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("estimate", poseData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Pose uncertainty", Subtitle: "trace of the covariance per tick"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "trace(P)"}),
	)
	line.SetXAxis(ticks).AddSeries("trace", traceData)

	page := components.NewPage()
	page.PageTitle = "intnav run"
	page.AddCharts(scatter, line)
	return page.Render(w)
}
