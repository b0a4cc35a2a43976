package spur

import (
	"math"
	"sort"
)

// Point is one sample of a locus.
type Point struct {
	RF float64 `json:"rf"`
	IF float64 `json:"if"`
}

// Line is the locus of one harmonic product across the RF sweep.
type Line struct {
	M int `json:"m"`
	N int `json:"n"`
	// Offset is n·LO, the IF intercept of the locus.
	Offset      float64 `json:"offset"`
	Attenuation float64 `json:"attenuation_dbc"`
	Alpha       float64 `json:"alpha"`
	Width       float64 `json:"width"`
	Label       string  `json:"label"`
	Points      []Point `json:"points"`
}

// Pair returns the harmonic combination this line traces.
func (l Line) Pair() Pair {
	return Pair{M: l.M, N: l.N}
}

// IFAt evaluates the locus at rf.
func (l Line) IFAt(rf float64) float64 {
	return float64(l.M)*rf + l.Offset
}

// Crosses reports whether the locus enters the box: some RF in
// [rfMin, rfMax] maps to an IF in [ifMin, ifMax].
func (l Line) Crosses(rfMin, rfMax, ifMin, ifMax float64) bool {
	a, b := l.IFAt(rfMin), l.IFAt(rfMax)
	lo, hi := math.Min(a, b), math.Max(a, b)
	return lo <= ifMax && hi >= ifMin
}

// Boundary is the closed filter box drawn over the loci.
type Boundary struct {
	Label   string  `json:"label"`
	Points  []Point `json:"points"`
	Width   float64 `json:"width"`
	Dashed  bool    `json:"dashed"`
	Markers bool    `json:"markers"`
}

// Limits are the axis extents of the chart.
type Limits struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Scene is the immutable output of one computation.
type Scene struct {
	Params      Params       `json:"params"`
	Lines       []Line       `json:"lines"`
	Boundary    Boundary     `json:"boundary"`
	Limits      Limits       `json:"limits"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// Line returns the locus for (m, n), if the scene contains it.
func (s *Scene) Line(m, n int) (Line, bool) {
	for _, l := range s.Lines {
		if l.M == m && l.N == n {
			return l, true
		}
	}
	return Line{}, false
}

// Crossings returns the lines that pass through the filter box, strongest
// (lowest attenuation) first. Equal levels keep scene order.
func (s *Scene) Crossings() []Line {
	p := s.Params
	var out []Line
	for _, l := range s.Lines {
		if l.Crosses(p.RFMin, p.RFMax, p.IFMin, p.IFMax) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Attenuation < out[j].Attenuation
	})
	return out
}

// Hit is the result of a label lookup. Index is the position in Lines, or
// -1 for the filter boundary.
type Hit struct {
	Index    int     `json:"index"`
	Label    string  `json:"label"`
	M        int     `json:"m"`
	N        int     `json:"n"`
	Distance float64 `json:"distance"`
}

// Nearest resolves a pointer position to the closest drawn polyline.
// Distances are measured in axis-normalised units (each axis spans 1), so
// maxDist is a fraction of the plot size. The first line wins a tie.
func (s *Scene) Nearest(rf, ifreq, maxDist float64) (Hit, bool) {
	sx := s.Limits.XMax - s.Limits.XMin
	sy := s.Limits.YMax - s.Limits.YMin
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}
	norm := func(p Point) (float64, float64) {
		return (p.RF - s.Limits.XMin) / sx, (p.IF - s.Limits.YMin) / sy
	}
	px, py := norm(Point{RF: rf, IF: ifreq})

	best := Hit{Index: -2, Distance: math.Inf(1)}
	consider := func(idx int, label string, m, n int, pts []Point) {
		for i := 1; i < len(pts); i++ {
			ax, ay := norm(pts[i-1])
			bx, by := norm(pts[i])
			if d := segmentDistance(px, py, ax, ay, bx, by); d < best.Distance {
				best = Hit{Index: idx, Label: label, M: m, N: n, Distance: d}
			}
		}
	}
	for i, l := range s.Lines {
		consider(i, l.Label, l.M, l.N, l.Points)
	}
	consider(-1, s.Boundary.Label, 0, 0, s.Boundary.Points)

	if best.Index == -2 || best.Distance > maxDist {
		return Hit{}, false
	}
	return best, true
}

// segmentDistance is the distance from (px, py) to the segment a-b.
func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
