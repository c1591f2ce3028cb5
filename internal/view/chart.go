package view

import (
	"errors"
	"io"

	"github.com/chemviz/dashboard/internal/derive"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoChart is returned when there is no series to draw.
var ErrNoChart = errors.New("no chart data")

// ChartFormat selects the image encoding.
type ChartFormat string

const (
	ChartPNG ChartFormat = "png"
	ChartSVG ChartFormat = "svg"
)

// ContentType returns the MIME type of the format.
func (f ChartFormat) ContentType() string {
	if f == ChartSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// ChartSize is the rendered image size in pixels.
type ChartSize struct {
	Width  int
	Height int
}

// DefaultChartSize matches the dashboard chart card.
var DefaultChartSize = ChartSize{Width: 960, Height: 400}

var barStyle = chart.Style{
	FillColor:   drawing.Color{R: 59, G: 130, B: 246, A: 153},
	StrokeColor: drawing.Color{R: 59, G: 130, B: 246, A: 255},
	StrokeWidth: 1,
}

// RenderChart draws the distribution as a bar chart with one bar per
// equipment type, in series order. The y axis always starts at zero.
func RenderChart(w io.Writer, series *derive.ChartSeries, format ChartFormat, size ChartSize) error {
	if series.Len() == 0 {
		return ErrNoChart
	}
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultChartSize
	}

	bars := make([]chart.Value, series.Len())
	for i, label := range series.Labels {
		bars[i] = chart.Value{Label: label, Value: float64(series.Values[i]), Style: barStyle}
	}

	barWidth := (size.Width - 120) / (2 * len(bars))
	if barWidth > 80 {
		barWidth = 80
	}
	if barWidth < 8 {
		barWidth = 8
	}

	graph := chart.BarChart{
		Title:      derive.SeriesLabel,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: axisMax(series.Max())},
		},
		Bars: bars,
	}

	provider := chart.PNG
	if format == ChartSVG {
		provider = chart.SVG
	}
	return graph.Render(provider, w)
}

// axisMax leaves headroom above the tallest bar and never collapses to zero.
func axisMax(max int64) float64 {
	if max < 1 {
		return 1
	}
	return float64(max) * 1.1
}
