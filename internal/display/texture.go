// Package display turns a rendered heatmap file back into a raster the UI
// can show, and formats values for display.
package display

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png" // heatmaps are PNG
	"os"

	xdraw "golang.org/x/image/draw"
)

// ErrDecode is returned when a heatmap file cannot be read or decoded.
var ErrDecode = errors.New("heatmap image decode failed")

// Texture is a decoded heatmap: 8 bits per channel, RGBA.
type Texture struct {
	Path  string
	Image *image.RGBA
}

// LoadTexture reads and decodes the image at path. Missing, empty and
// corrupt files all yield an error wrapping ErrDecode.
func LoadTexture(path string) (*Texture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrDecode, path)
	}
	src, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		r := src.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), src, r.Min, xdraw.Src)
	}
	return &Texture{Path: path, Image: rgba}, nil
}

// Size returns the texture's width and height in pixels.
func (t *Texture) Size() (w, h int) {
	if t == nil || t.Image == nil {
		return 0, 0
	}
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Thumbnail returns the texture scaled to w x h.
func (t *Texture) Thumbnail(w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if t != nil && t.Image != nil {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), t.Image, t.Image.Bounds(), xdraw.Src, nil)
	}
	return dst
}

// Release drops the pixel buffer.
func (t *Texture) Release() {
	if t == nil {
		return
	}
	t.Image = nil
}
