// Package spur computes mixer crossing-spur charts.
//
// For every harmonic pair (m, n) with |m|+|n| <= maxHarm the engine traces
// the locus IF = m·RF + n·LO across a padded RF sweep and styles it from the
// mixer's harmonics table. The result is a Scene: a self-contained, display
// ready description that renderers draw without further computation.
package spur

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/spur.analyzer/internal/harmonics"
	"github.com/banshee-data/spur.analyzer/internal/monitoring"
)

const (
	// DefaultSweepPoints is the number of RF samples per locus.
	DefaultSweepPoints = 200

	// FundamentalWidth is the stroke weight of the |m|=|n|=1 products.
	FundamentalWidth = 3.0
	// SpurWidth is the stroke weight of every other product.
	SpurWidth = 1.5

	// BoundaryLabel names the filter box polyline.
	BoundaryLabel = "Filter Bounds"
	// BoundaryWidth is the stroke weight of the filter box.
	BoundaryWidth = 2.0
)

// Fitted quadratic mapping attenuation (dBc) to line opacity. The
// coefficients are empirical and must not be re-derived.
const (
	alphaA = -0.000659
	alphaB = 0.033619
	alphaC = 1.0
)

// Pair is one harmonic combination m·RF + n·LO.
type Pair struct {
	M int `json:"m"`
	N int `json:"n"`
}

// Order is the combined harmonic order |m|+|n|.
func (p Pair) Order() int {
	return abs(p.M) + abs(p.N)
}

// Fundamental reports whether this is one of the |m|=|n|=1 products.
func (p Pair) Fundamental() bool {
	return abs(p.M) == 1 && abs(p.N) == 1
}

// Pairs enumerates every (m, n) with |m|+|n| <= maxHarm, m ascending and n
// ascending within each m. This is the diamond of the lattice, not the
// (2·maxHarm+1)² square.
func Pairs(maxHarm int) []Pair {
	if maxHarm < 0 {
		return nil
	}
	out := make([]Pair, 0, PairCount(maxHarm))
	for m := -maxHarm; m <= maxHarm; m++ {
		span := maxHarm - abs(m)
		for n := -span; n <= span; n++ {
			out = append(out, Pair{M: m, N: n})
		}
	}
	return out
}

// PairCount is the number of lattice points with |m|+|n| <= maxHarm.
func PairCount(maxHarm int) int {
	if maxHarm < 0 {
		return 0
	}
	return 2*maxHarm*(maxHarm+1) + 1
}

// LineAlpha maps a spur level in dBc to an opacity in [0, 1]. Strong spurs
// (low attenuation) draw near opaque; weak ones fade out.
func LineAlpha(x float64) float64 {
	a := alphaA*x*x + alphaB*x + alphaC
	return math.Max(0, math.Min(1, a))
}

// Label identifies a product and its level, e.g. "1RFx0LO -19 dBc".
func Label(m, n int, atten float64) string {
	return fmt.Sprintf("%dRFx%dLO -%s dBc", m, n, strconv.FormatFloat(atten, 'f', -1, 64))
}

// PaddedRange widens [lo, hi] to [floor(0.9·lo), ceil(1.1·hi)]. The same
// padding sets the sweep domain and both axis limits. The products are
// formed as lo - lo/10 and hi + hi/10 so round bounds stay round: a literal
// ceil(1.1*1500) sees 1650.0000000000002 and plots to 1651, while
// PaddedRange(1000, 1500) is (900, 1650).
func PaddedRange(lo, hi float64) (float64, float64) {
	return math.Floor(lo - lo/10), math.Ceil(hi + hi/10)
}

// Engine computes scenes. The zero value is ready to use.
type Engine struct {
	// SweepPoints is the number of RF samples per locus; values below 2
	// use DefaultSweepPoints.
	SweepPoints int
}

// NewEngine returns an engine with the default sweep resolution.
func NewEngine() *Engine {
	return &Engine{SweepPoints: DefaultSweepPoints}
}

// Sweep returns the evenly spaced RF samples covering the padded RF band.
func (e *Engine) Sweep(rfMin, rfMax float64) []float64 {
	n := e.SweepPoints
	if n < 2 {
		n = DefaultSweepPoints
	}
	lo, hi := PaddedRange(rfMin, rfMax)
	return floats.Span(make([]float64, n), lo, hi)
}

// Compute builds the full scene for p from scratch. Parameters are first
// clamped by Normalize; any adjustments are logged and kept on the scene.
func (e *Engine) Compute(p Params, table *harmonics.Table) *Scene {
	if table == nil {
		table = harmonics.Default()
	}
	p, adj := Normalize(p, table)
	for _, a := range adj {
		monitoring.Warnf("parameter clamped: %s", a)
	}

	rf := e.Sweep(p.RFMin, p.RFMax)
	pairs := Pairs(p.MaxHarm)
	lines := make([]Line, 0, len(pairs))
	for _, pr := range pairs {
		lines = append(lines, e.line(pr, p, table, rf))
	}

	xMin, xMax := PaddedRange(p.RFMin, p.RFMax)
	yMin, yMax := PaddedRange(p.IFMin, p.IFMax)

	return &Scene{
		Params:      p,
		Lines:       lines,
		Boundary:    newBoundary(p),
		Limits:      Limits{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax},
		Adjustments: adj,
	}
}

func (e *Engine) line(pr Pair, p Params, table *harmonics.Table, rf []float64) Line {
	atten := table.Get(abs(pr.M), abs(pr.N))
	offset := float64(pr.N) * p.LO

	pts := make([]Point, len(rf))
	for i, x := range rf {
		pts[i] = Point{RF: x, IF: float64(pr.M)*x + offset}
	}

	width := SpurWidth
	if pr.Fundamental() {
		width = FundamentalWidth
	}
	alpha := 1.0
	if p.UseAlpha {
		alpha = LineAlpha(atten)
	}

	return Line{
		M:           pr.M,
		N:           pr.N,
		Offset:      offset,
		Attenuation: atten,
		Alpha:       alpha,
		Width:       width,
		Label:       Label(pr.M, pr.N, atten),
		Points:      pts,
	}
}

func newBoundary(p Params) Boundary {
	return Boundary{
		Label: BoundaryLabel,
		Points: []Point{
			{RF: p.RFMin, IF: p.IFMin},
			{RF: p.RFMin, IF: p.IFMax},
			{RF: p.RFMax, IF: p.IFMax},
			{RF: p.RFMax, IF: p.IFMin},
			{RF: p.RFMin, IF: p.IFMin},
		},
		Width:   BoundaryWidth,
		Dashed:  true,
		Markers: true,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
