// Package render draws spur scenes. Static images go through gonum/plot and
// the interactive page through go-echarts; both read only the Scene.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/spur.analyzer/internal/fsutil"
	"github.com/banshee-data/spur.analyzer/internal/spur"
	"github.com/banshee-data/spur.analyzer/internal/units"
)

// Title heads every chart.
const Title = "Mixer Crossing Spurious Analysis"

// ErrUnsupportedFormat is returned for output extensions no renderer handles.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the output extensions SaveFile accepts.
var Formats = []string{".png", ".svg", ".pdf", ".html"}

// Options control presentation only; the scene fixes what is drawn.
type Options struct {
	// Unit labels both axes, e.g. "MHz".
	Unit string
	// Source names the active harmonics table in the subtitle.
	Source string
	// WidthIn and HeightIn size static images in inches.
	WidthIn  float64
	HeightIn float64
}

// DefaultOptions returns MHz axes on a 10x6 inch canvas.
func DefaultOptions() Options {
	return Options{Unit: units.MHz, WidthIn: 10, HeightIn: 6}
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.WidthIn, o.HeightIn
	if w <= 0 {
		w = 10
	}
	if h <= 0 {
		h = 6
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

// sceneLayers are the styled plotters for a scene in drawing order.
type sceneLayers struct {
	lines    []*plotter.Line
	boundary *plotter.Line
	// markers is nil when the boundary is drawn without vertex markers.
	markers *plotter.Scatter
}

func newLayers(s *spur.Scene) (*sceneLayers, error) {
	layers := &sceneLayers{lines: make([]*plotter.Line, 0, len(s.Lines))}
	for i, l := range s.Lines {
		line, err := plotter.NewLine(xys(l.Points))
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", l.Label, err)
		}
		line.Color = lineColor(i, l.Alpha)
		line.Width = vg.Points(l.Width)
		layers.lines = append(layers.lines, line)
	}

	b := s.Boundary
	bl, bs, err := plotter.NewLinePoints(xys(b.Points))
	if err != nil {
		return nil, fmt.Errorf("boundary: %w", err)
	}
	bl.Color = boundaryColor
	bl.Width = vg.Points(b.Width)
	if b.Dashed {
		bl.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	}
	layers.boundary = bl
	if b.Markers {
		bs.Color = boundaryColor
		bs.Shape = draw.CircleGlyph{}
		bs.Radius = vg.Points(3)
		layers.markers = bs
	}
	return layers, nil
}

// NewPlot builds the gonum plot for s. Every locus is drawn; only the
// crossing spurs and the filter box get a legend entry.
func NewPlot(s *spur.Scene, o Options) (*plot.Plot, error) {
	layers, err := newLayers(s)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = Title
	if o.Source != "" {
		p.Title.Text += "\n" + o.Source
	}
	p.X.Label.Text = units.AxisTitle("RF", o.Unit)
	p.Y.Label.Text = units.AxisTitle("IF", o.Unit)
	p.Add(plotter.NewGrid())

	crossing := make(map[spur.Pair]bool)
	for _, l := range s.Crossings() {
		crossing[l.Pair()] = true
	}
	for i, line := range layers.lines {
		p.Add(line)
		if l := s.Lines[i]; crossing[l.Pair()] {
			p.Legend.Add(l.Label, line)
		}
	}

	p.Add(layers.boundary)
	if layers.markers != nil {
		p.Add(layers.markers)
		p.Legend.Add(s.Boundary.Label, layers.boundary, layers.markers)
	} else {
		p.Legend.Add(s.Boundary.Label, layers.boundary)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	// Add widens the axes to the data; pin them to the scene limits last.
	p.X.Min, p.X.Max = s.Limits.XMin, s.Limits.XMax
	p.Y.Min, p.Y.Max = s.Limits.YMin, s.Limits.YMax
	return p, nil
}

// WritePlot renders s as a static image. format is a gonum/plot format name
// such as "png", "svg" or "pdf".
func WritePlot(w io.Writer, s *spur.Scene, format string, o Options) error {
	p, err := NewPlot(s, o)
	if err != nil {
		return err
	}
	width, height := o.size()
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s plot: %w", format, err)
	}
	return nil
}

// SaveFile writes s to path, picking the renderer from the extension.
func SaveFile(fsys fsutil.FileSystem, path string, s *spur.Scene, o Options) error {
	ext := strings.ToLower(filepath.Ext(path))
	var buf bytes.Buffer
	switch ext {
	case ".html":
		if err := WriteHTML(&buf, s, o); err != nil {
			return err
		}
	case ".png", ".svg", ".pdf":
		if err := WritePlot(&buf, s, ext[1:], o); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, ext, strings.Join(Formats, ", "))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func xys(pts []spur.Point) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, p := range pts {
		out[i] = plotter.XY{X: p.RF, Y: p.IF}
	}
	return out
}
