// Package surface builds the spot/volatility price grid and turns it into a
// heatmap file through a pluggable SurfaceRenderer.
package surface

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/contactkeval/option-surface/internal/pricing"
)

// DefaultSteps is the resolution of both grid axes.
const DefaultSteps = 100

// GridSpec describes how the grid axes are derived from the base input.
// Each range is expressed as multiples of the base spot or volatility.
type GridSpec struct {
	SpotSteps int     `mapstructure:"spot_steps"`
	VolSteps  int     `mapstructure:"vol_steps"`
	SpotLow   float64 `mapstructure:"spot_low"`
	SpotHigh  float64 `mapstructure:"spot_high"`
	VolLow    float64 `mapstructure:"vol_low"`
	VolHigh   float64 `mapstructure:"vol_high"`
}

// DefaultGridSpec samples [0.5x, 1.5x] of spot and volatility on a 100x100 grid.
func DefaultGridSpec() GridSpec {
	return GridSpec{
		SpotSteps: DefaultSteps,
		VolSteps:  DefaultSteps,
		SpotLow:   0.5,
		SpotHigh:  1.5,
		VolLow:    0.5,
		VolHigh:   1.5,
	}
}

// Validate rejects specs that cannot produce at least one sample per axis.
func (s GridSpec) Validate() error {
	if s.SpotSteps < 1 || s.VolSteps < 1 {
		return fmt.Errorf("grid steps must be >= 1, got %dx%d", s.SpotSteps, s.VolSteps)
	}
	if s.SpotLow > s.SpotHigh || s.VolLow > s.VolHigh {
		return fmt.Errorf("grid range inverted: spot [%g,%g] vol [%g,%g]",
			s.SpotLow, s.SpotHigh, s.VolLow, s.VolHigh)
	}
	return nil
}

// Axis is an inclusive, evenly spaced sampling of [Min, Max].
type Axis struct {
	Min, Max float64
	Values   []float64
}

// NewAxis returns steps points from min to max inclusive. A single step
// yields just min, so the spacing never divides by zero.
func NewAxis(min, max float64, steps int) Axis {
	a := Axis{Min: min, Max: max}
	switch {
	case steps <= 0:
	case steps == 1:
		a.Values = []float64{min}
	default:
		a.Values = floats.Span(make([]float64, steps), min, max)
		a.Values[steps-1] = max
	}
	return a
}

// Len is the number of samples on the axis.
func (a Axis) Len() int { return len(a.Values) }

// Grid is a spot x volatility matrix of prices. Cells are narrowed to
// float32; the grid only feeds visualization.
type Grid struct {
	Input pricing.Input // base input; Spot and Volatility are the axis centers
	Spot  Axis
	Vol   Axis
	cells []float32 // row-major by spot index
}

// BuildGrid prices every (spot, vol) pair of spec around in, holding
// strike, maturity, rate and option type fixed.
func BuildGrid(in pricing.Input, spec GridSpec) *Grid {
	g := &Grid{
		Input: in,
		Spot:  NewAxis(in.Spot*spec.SpotLow, in.Spot*spec.SpotHigh, spec.SpotSteps),
		Vol:   NewAxis(in.Volatility*spec.VolLow, in.Volatility*spec.VolHigh, spec.VolSteps),
	}
	g.cells = make([]float32, g.Spot.Len()*g.Vol.Len())

	cell := in
	for i, s := range g.Spot.Values {
		cell.Spot = s
		for j, v := range g.Vol.Values {
			cell.Volatility = v
			g.cells[i*g.Vol.Len()+j] = float32(pricing.Price(cell))
		}
	}
	return g
}

// Dims returns the number of spot and volatility samples.
func (g *Grid) Dims() (spot, vol int) { return g.Spot.Len(), g.Vol.Len() }

// At returns the price at spot index i and volatility index j.
func (g *Grid) At(i, j int) float32 {
	return g.cells[i*g.Vol.Len()+j]
}

// Values returns a copy of the cells, row-major by spot index.
func (g *Grid) Values() []float32 {
	out := make([]float32, len(g.cells))
	copy(out, g.cells)
	return out
}

// Range returns the smallest and largest finite cell values. ok is false if
// the grid holds no finite value.
func (g *Grid) Range() (min, max float32, ok bool) {
	for _, v := range g.cells {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if !ok {
			min, max, ok = v, v, true
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, ok
}
