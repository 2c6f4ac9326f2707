package debug

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ReportRow is one evaluated frame.
type ReportRow struct {
	Label      string
	Expected   string
	Got        string
	Method     string
	Confidence float64
	Correct    bool
}

// RenderReport writes an HTML page with per-method accuracy and the per-frame
// confidence of an evaluation run.
func RenderReport(w io.Writer, title string, rows []ReportRow) error {
	type tally struct{ total, correct int }
	byMethod := map[string]*tally{}
	for _, r := range rows {
		m := r.Method
		if m == "" {
			m = "none"
		}
		t := byMethod[m]
		if t == nil {
			t = &tally{}
			byMethod[m] = t
		}
		t.total++
		if r.Correct {
			t.correct++
		}
	}
	methods := make([]string, 0, len(byMethod))
	for m := range byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	accuracy := make([]opts.BarData, len(methods))
	counts := make([]opts.BarData, len(methods))
	for i, m := range methods {
		t := byMethod[m]
		accuracy[i] = opts.BarData{Value: 100 * float64(t.correct) / float64(t.total)}
		counts[i] = opts.BarData{Value: t.total}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(methods).
		AddSeries("accuracy %", accuracy,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("frames", counts)

	labels := make([]string, len(rows))
	conf := make([]opts.LineData, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
		conf[i] = opts.LineData{Value: r.Confidence, Name: fmt.Sprintf("%s → %s", r.Expected, r.Got)}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Confidence per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(labels).AddSeries("confidence", conf)

	page := components.NewPage()
	page.AddCharts(bar, line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
