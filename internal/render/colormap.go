package render

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// viridisControls samples matplotlib's viridis at ten evenly spaced points.
// Luminance increases monotonically, which moreland.NewLuminance requires.
var viridisControls = []color.Color{
	color.NRGBA{R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	color.NRGBA{R: 0x48, G: 0x28, B: 0x78, A: 0xff},
	color.NRGBA{R: 0x3e, G: 0x4a, B: 0x89, A: 0xff},
	color.NRGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff},
	color.NRGBA{R: 0x26, G: 0x82, B: 0x8e, A: 0xff},
	color.NRGBA{R: 0x1f, G: 0x9e, B: 0x89, A: 0xff},
	color.NRGBA{R: 0x35, G: 0xb7, B: 0x79, A: 0xff},
	color.NRGBA{R: 0x6d, G: 0xcd, B: 0x59, A: 0xff},
	color.NRGBA{R: 0xb4, G: 0xde, B: 0x2c, A: 0xff},
	color.NRGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
}

// Viridis returns a luminance-interpolated approximation of viridis.
func Viridis() (palette.ColorMap, error) {
	return moreland.NewLuminance(viridisControls)
}

func static(f func() palette.ColorMap) func() (palette.ColorMap, error) {
	return func() (palette.ColorMap, error) { return f(), nil }
}

var colormaps = map[string]func() (palette.ColorMap, error){
	"viridis":            Viridis,
	"kindlmann":          static(moreland.Kindlmann),
	"extended-kindlmann": static(moreland.ExtendedKindlmann),
	"blackbody":          static(moreland.BlackBody),
	"extended-blackbody": static(moreland.ExtendedBlackBody),
}

// Colormaps lists the names accepted by NewColormap.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewColormap returns a fresh color map by name. Each call returns a new
// value, so callers may set its range freely.
func NewColormap(name string) (palette.ColorMap, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "viridis"
	}
	f, ok := colormaps[key]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (want one of %s)", name, strings.Join(Colormaps(), ", "))
	}
	return f()
}
