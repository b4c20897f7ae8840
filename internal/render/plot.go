// Package render draws price grids as PNG heatmaps with gonum/plot.
package render

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/contactkeval/option-surface/internal/logger"
	"github.com/contactkeval/option-surface/internal/surface"
)

const (
	paletteSize   = 256
	colorBarLabel = "Option Price"
)

// PlotRenderer implements surface.SurfaceRenderer: a heatmap with a vertical
// color bar on its right, encoded as PNG.
type PlotRenderer struct {
	cfg surface.RenderConfig
}

var _ surface.SurfaceRenderer = (*PlotRenderer)(nil)

// NewPlotRenderer checks cfg up front so that Render only fails on data.
func NewPlotRenderer(cfg surface.RenderConfig) (*PlotRenderer, error) {
	if cfg.WidthPx <= 0 || cfg.HeightPx <= 0 {
		return nil, fmt.Errorf("render: image size must be positive, got %dx%d", cfg.WidthPx, cfg.HeightPx)
	}
	if cfg.DPI <= 0 {
		return nil, fmt.Errorf("render: dpi must be positive, got %d", cfg.DPI)
	}
	if _, err := NewColormap(cfg.Colormap); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if e := cfg.Extent; e != nil && (e.XMin >= e.XMax || e.YMin >= e.YMax) {
		return nil, fmt.Errorf("render: empty extent %+v", *e)
	}
	return &PlotRenderer{cfg: cfg}, nil
}

// Config returns the renderer's configuration.
func (r *PlotRenderer) Config() surface.RenderConfig { return r.cfg }

// Render draws g and returns the PNG bytes. Grids without a spread of
// finite values cannot be color-scaled and fail with surface.ErrRenderFailed.
func (r *PlotRenderer) Render(g *surface.Grid, labels surface.Labels) ([]byte, error) {
	spotN, volN := g.Dims()
	if spotN == 0 || volN == 0 {
		return nil, fmt.Errorf("%w: empty grid", surface.ErrRenderFailed)
	}
	lo, hi, ok := g.Range()
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: grid has no finite values", surface.ErrRenderFailed)
	case lo == hi:
		return nil, fmt.Errorf("%w: grid is constant (%g), color scale undefined", surface.ErrRenderFailed, lo)
	}

	cmap, err := NewColormap(r.cfg.Colormap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", surface.ErrRenderFailed, err)
	}
	cmap.SetMin(float64(lo))
	cmap.SetMax(float64(hi))

	xyz := newGridXYZ(g, r.cfg.ExtentFor(g), r.cfg.Origin == surface.OriginUpper)
	heat := plotter.NewHeatMap(xyz, cmap.Palette(paletteSize))
	heat.Rasterized = true

	p := plot.New()
	p.Title.Text = labels.Title
	p.X.Label.Text = labels.X
	p.Y.Label.Text = labels.Y
	p.X.Padding = 0
	p.Y.Padding = 0
	p.Add(heat)

	bar := plot.New()
	bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})
	bar.HideX()
	bar.Y.Padding = 0
	bar.Y.Label.Text = colorBarLabel

	w := vg.Length(r.cfg.WidthPx) * vg.Inch / vg.Length(r.cfg.DPI)
	h := vg.Length(r.cfg.HeightPx) * vg.Inch / vg.Length(r.cfg.DPI)
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.cfg.DPI))
	dc := draw.New(img)

	plotArea, barArea := layout(dc, p, r.cfg.Aspect)
	p.Draw(plotArea)
	bar.Draw(barArea)

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", surface.ErrRenderFailed, err)
	}
	logger.Tracef("rendered %dx%d heatmap, range [%g, %g], %d bytes", spotN, volN, lo, hi, buf.Len())
	return buf.Bytes(), nil
}

// layout splits dc into the heatmap area and a color bar strip on the right.
// The strip starts below the title so both share the same vertical span.
func layout(dc draw.Canvas, p *plot.Plot, aspect surface.Aspect) (plotArea, barArea draw.Canvas) {
	width := dc.Max.X - dc.Min.X
	barW := width / 8
	if minW := vg.Points(48); barW < minW {
		barW = minW
	}

	plotArea = draw.Crop(dc, 0, -barW, 0, 0)
	var top vg.Length
	if p.Title.Text != "" {
		top = p.Title.TextStyle.Height(p.Title.Text) + p.Title.Padding
	}
	barArea = draw.Crop(dc, width-barW+vg.Points(6), -vg.Points(6), p.X.Label.TextStyle.Height("0")*3, -top)

	if aspect == surface.AspectSquare {
		pw := plotArea.Max.X - plotArea.Min.X
		ph := plotArea.Max.Y - plotArea.Min.Y
		switch {
		case pw > ph:
			d := (pw - ph) / 2
			plotArea = draw.Crop(plotArea, d, -d, 0, 0)
		case ph > pw:
			d := (ph - pw) / 2
			plotArea = draw.Crop(plotArea, 0, 0, d, -d)
		}
	}
	return plotArea, barArea
}

// gridXYZ adapts a surface.Grid to plotter.GridXYZ: columns are spot
// samples, rows are volatility samples. Cell centers are spread evenly over
// the extent so the heatmap's outer edges land exactly on it.
type gridXYZ struct {
	g        *surface.Grid
	ext      surface.Extent
	flip     bool
	cols     int
	rows     int
	min, max float64
}

func newGridXYZ(g *surface.Grid, ext surface.Extent, flip bool) gridXYZ {
	cols, rows := g.Dims()
	lo, hi, _ := g.Range()
	return gridXYZ{g: g, ext: ext, flip: flip, cols: cols, rows: rows, min: float64(lo), max: float64(hi)}
}

func (x gridXYZ) Dims() (c, r int) { return x.cols, x.rows }

func (x gridXYZ) Z(c, r int) float64 {
	if x.flip {
		r = x.rows - 1 - r
	}
	return float64(x.g.At(c, r))
}

func (x gridXYZ) X(c int) float64 {
	return x.ext.XMin + (float64(c)+0.5)*(x.ext.XMax-x.ext.XMin)/float64(x.cols)
}

func (x gridXYZ) Y(r int) float64 {
	return x.ext.YMin + (float64(r)+0.5)*(x.ext.YMax-x.ext.YMin)/float64(x.rows)
}

// Min and Max pin the heatmap's color scale to the finite range, so
// infinities fall outside it and are left undrawn.
func (x gridXYZ) Min() float64 { return x.min }
func (x gridXYZ) Max() float64 { return x.max }
