package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/banshee-data/spur.analyzer/internal/spur"
	"github.com/banshee-data/spur.analyzer/internal/units"
)

// hoverLabel shows the series name, which is the line label, for the item
// under the pointer.
const hoverLabel = types.FuncStr("{a}")

// NewChart builds the interactive chart for s: one series per locus named by
// its label, plus the filter box. Hovering any sample shows its label.
func NewChart(s *spur.Scene, o Options) *charts.Line {
	width, height := o.size()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: Title,
			Width:     fmt.Sprintf("%.0fpx", width.Dots(96)),
			Height:    fmt.Sprintf("%.0fpx", height.Dots(96)),
		}),
		charts.WithTitleOpts(opts.Title{Title: Title, Subtitle: subtitle(s, o)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item", Formatter: hoverLabel}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "bottom", Data: legendData(s)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:         "value",
			Name:         units.AxisTitle("RF", o.Unit),
			NameLocation: "middle",
			NameGap:      25,
			Min:          s.Limits.XMin,
			Max:          s.Limits.XMax,
			SplitLine:    &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:         "value",
			Name:         units.AxisTitle("IF", o.Unit),
			NameLocation: "middle",
			NameGap:      40,
			Min:          s.Limits.YMin,
			Max:          s.Limits.YMax,
			SplitLine:    &opts.SplitLine{Show: opts.Bool(true)},
		}),
	)

	for i, l := range s.Lines {
		c := lineColor(i, l.Alpha)
		line.AddSeries(l.Label, lineData(l.Points),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true), Symbol: "circle", SymbolSize: 2}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(c), Width: float32(l.Width), Opacity: opts.Float(float32(clamp01(l.Alpha)))}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(c), Opacity: opts.Float(float32(clamp01(l.Alpha)))}),
		)
	}

	b := s.Boundary
	style := opts.LineStyle{Color: hexColor(boundaryColor), Width: float32(b.Width)}
	if b.Dashed {
		style.Type = "dashed"
	}
	symbol := opts.LineChart{ShowSymbol: opts.Bool(b.Markers), Symbol: "circle", SymbolSize: 8}
	line.AddSeries(b.Label, lineData(b.Points),
		charts.WithLineChartOpts(symbol),
		charts.WithLineStyleOpts(style),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(boundaryColor)}),
	)
	return line
}

// WriteHTML renders the interactive chart page for s.
func WriteHTML(w io.Writer, s *spur.Scene, o Options) error {
	if err := NewChart(s, o).Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func subtitle(s *spur.Scene, o Options) string {
	p := s.Params
	sub := fmt.Sprintf("LO=%g maxHarm=%d lines=%d", p.LO, p.MaxHarm, len(s.Lines))
	if o.Source != "" {
		sub = o.Source + "  " + sub
	}
	return sub
}

// legendData keeps the legend to the crossing spurs and the filter box; the
// full set runs to hundreds of entries at high orders.
func legendData(s *spur.Scene) []string {
	names := []string{s.Boundary.Label}
	for _, l := range s.Crossings() {
		names = append(names, l.Label)
	}
	return names
}

func lineData(pts []spur.Point) []opts.LineData {
	out := make([]opts.LineData, len(pts))
	for i, p := range pts {
		out[i] = opts.LineData{Value: []interface{}{p.RF, p.IF}}
	}
	return out
}
