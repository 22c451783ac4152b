package demo

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderForecastChart renders the demo forecast series as a standalone
// HTML chart the frontend embeds in the prediction panel
func RenderForecastChart(districtName string, values []float64) (string, error) {
	days := make([]string, len(values))
	points := make([]opts.LineData, len(values))
	for i, v := range values {
		days[i] = fmt.Sprintf("Hari %d", i+1)
		points[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Prediksi NDVI " + districtName,
			Subtitle: fmt.Sprintf("%d hari ke depan (data contoh)", len(values)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "NDVI", Min: 0, Max: 1}),
	)
	line.SetXAxis(days).
		AddSeries("Prediksi", points,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
