package surface

import (
	"errors"
	"fmt"

	"github.com/contactkeval/option-surface/internal/pricing"
)

// ErrRenderFailed marks every failure of the rendering step.
var ErrRenderFailed = errors.New("heatmap render failed")

// SurfaceRenderer turns a grid into encoded image bytes. Implementations
// must return an error rather than partial output.
type SurfaceRenderer interface {
	Render(g *Grid, labels Labels) ([]byte, error)
}

// Labels are the texts drawn around the heatmap.
type Labels struct {
	X     string
	Y     string
	Title string
}

// DefaultLabels returns the axis labels and the title for an option type.
func DefaultLabels(t pricing.OptionType) Labels {
	return Labels{
		X:     "Stock Price (S)",
		Y:     "Volatility (σ)",
		Title: fmt.Sprintf("Option Price Heatmap (%s Option)", t),
	}
}

// Origin selects which corner grid index (0, 0) is drawn in.
type Origin int

const (
	OriginLower Origin = iota // low spot, low vol at the bottom-left
	OriginUpper               // low vol rows drawn at the top
)

// Aspect controls the shape of the plot area.
type Aspect int

const (
	AspectAuto   Aspect = iota // stretch to fill the image
	AspectSquare               // square plot area, square cells on a square grid
)

// Extent is the coordinate span covered by the heatmap cells, in axis units.
type Extent struct {
	XMin, XMax, YMin, YMax float64
}

// RenderConfig enumerates the recognized rendering options.
type RenderConfig struct {
	Colormap string
	Origin   Origin
	Aspect   Aspect
	Extent   *Extent // nil: span of the grid axes
	WidthPx  int
	HeightPx int
	DPI      int
}

// DefaultRenderConfig mirrors an 800x600 viridis plot with the origin at the
// low-value corner and auto aspect.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Colormap: "viridis",
		Origin:   OriginLower,
		Aspect:   AspectAuto,
		WidthPx:  800,
		HeightPx: 600,
		DPI:      96,
	}
}

// ExtentFor returns cfg.Extent, or the span of g's axes when unset.
func (cfg RenderConfig) ExtentFor(g *Grid) Extent {
	if cfg.Extent != nil {
		return *cfg.Extent
	}
	return Extent{XMin: g.Spot.Min, XMax: g.Spot.Max, YMin: g.Vol.Min, YMax: g.Vol.Max}
}

// ParseOrigin accepts "lower" and "upper".
func ParseOrigin(s string) (Origin, error) {
	switch s {
	case "", "lower":
		return OriginLower, nil
	case "upper":
		return OriginUpper, nil
	}
	return OriginLower, fmt.Errorf("unknown origin %q", s)
}

// ParseAspect accepts "auto" and "square".
func ParseAspect(s string) (Aspect, error) {
	switch s {
	case "", "auto":
		return AspectAuto, nil
	case "square", "equal":
		return AspectSquare, nil
	}
	return AspectAuto, fmt.Errorf("unknown aspect %q", s)
}
