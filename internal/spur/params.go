package spur

import (
	"fmt"
	"math"

	"github.com/banshee-data/spur.analyzer/internal/harmonics"
)

// Params is the input snapshot for one scene computation. Frequencies share
// whatever unit the caller works in; the engine is unit-agnostic.
type Params struct {
	RFMin    float64 `json:"rf_min"`
	RFMax    float64 `json:"rf_max"`
	IFMin    float64 `json:"if_min"`
	IFMax    float64 `json:"if_max"`
	LO       float64 `json:"lo"`
	MaxHarm  int     `json:"max_harm"`
	UseAlpha bool    `json:"use_alpha"`
}

func (p Params) String() string {
	return fmt.Sprintf("RF=[%g,%g] IF=[%g,%g] LO=%g maxHarm=%d alpha=%t",
		p.RFMin, p.RFMax, p.IFMin, p.IFMax, p.LO, p.MaxHarm, p.UseAlpha)
}

// MaxFrequency bounds the magnitude of every frequency parameter. Loci reach
// maxHarm·1.1·|f|, so anything near the float64 range would sample to Inf.
const MaxFrequency = 1e15

// Adjustment records a parameter that was outside its legal domain and the
// value it was clamped to.
type Adjustment struct {
	Field  string  `json:"field"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Reason string  `json:"reason"`
}

func (a Adjustment) String() string {
	return fmt.Sprintf("%s %g -> %g (%s)", a.Field, a.From, a.To, a.Reason)
}

// Normalize clamps p into the domain the engine accepts and reports every
// change. It never fails:
//   - non-finite frequencies become 0
//   - frequencies beyond ±MaxFrequency are clamped to it
//   - a negative LO becomes 0; LO == 0 is legal and yields horizontal loci
//   - reversed RF or IF bounds are swapped
//   - MaxHarm is clamped to [0, table.MaxOrder()] so every lookup is in range
func Normalize(p Params, table *harmonics.Table) (Params, []Adjustment) {
	var adj []Adjustment

	finite := func(name string, v *float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			adj = append(adj, Adjustment{Field: name, From: *v, To: 0, Reason: "not a finite number"})
			*v = 0
		}
	}
	finite("rf_min", &p.RFMin)
	finite("rf_max", &p.RFMax)
	finite("if_min", &p.IFMin)
	finite("if_max", &p.IFMax)
	finite("lo", &p.LO)

	bounded := func(name string, v *float64) {
		if to := math.Max(-MaxFrequency, math.Min(MaxFrequency, *v)); to != *v {
			adj = append(adj, Adjustment{Field: name, From: *v, To: to, Reason: "exceeds the largest supported frequency"})
			*v = to
		}
	}
	bounded("rf_min", &p.RFMin)
	bounded("rf_max", &p.RFMax)
	bounded("if_min", &p.IFMin)
	bounded("if_max", &p.IFMax)
	bounded("lo", &p.LO)

	if p.LO < 0 {
		adj = append(adj, Adjustment{Field: "lo", From: p.LO, To: 0, Reason: "LO frequency cannot be negative"})
		p.LO = 0
	}
	if p.RFMin > p.RFMax {
		adj = append(adj, Adjustment{Field: "rf_min", From: p.RFMin, To: p.RFMax, Reason: "RF bounds reversed"})
		p.RFMin, p.RFMax = p.RFMax, p.RFMin
	}
	if p.IFMin > p.IFMax {
		adj = append(adj, Adjustment{Field: "if_min", From: p.IFMin, To: p.IFMax, Reason: "IF bounds reversed"})
		p.IFMin, p.IFMax = p.IFMax, p.IFMin
	}
	if p.MaxHarm < 0 {
		adj = append(adj, Adjustment{Field: "max_harm", From: float64(p.MaxHarm), To: 0, Reason: "harmonic order cannot be negative"})
		p.MaxHarm = 0
	}
	if table != nil && !table.Covers(p.MaxHarm) {
		limit := table.MaxOrder()
		adj = append(adj, Adjustment{
			Field:  "max_harm",
			From:   float64(p.MaxHarm),
			To:     float64(limit),
			Reason: fmt.Sprintf("harmonics table only covers orders 0..%d", limit),
		})
		p.MaxHarm = limit
	}
	return p, adj
}
