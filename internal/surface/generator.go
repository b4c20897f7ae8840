package surface

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/contactkeval/option-surface/internal/logger"
	"github.com/contactkeval/option-surface/internal/pricing"
)

// Generator samples the price surface and writes the rendered heatmap.
// It keeps no state between calls.
type Generator struct {
	renderer SurfaceRenderer
	spec     GridSpec
}

// NewGenerator returns a Generator sampling with spec and drawing with r.
func NewGenerator(r SurfaceRenderer, spec GridSpec) (*Generator, error) {
	if r == nil {
		return nil, errors.New("surface: nil renderer")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Generator{renderer: r, spec: spec}, nil
}

// Spec returns the grid spec used by Generate.
func (g *Generator) Spec() GridSpec { return g.spec }

// Generate builds the grid for in, renders it and writes the image to
// outputPath, replacing any existing file. The write is atomic: when
// rendering or writing fails the previous file, if any, is left as it was.
// Render failures wrap ErrRenderFailed.
func (g *Generator) Generate(in pricing.Input, outputPath string) (*Grid, error) {
	start := time.Now()

	grid := BuildGrid(in, g.spec)
	spotN, volN := grid.Dims()
	logger.Debugf("grid built: %s %dx%d spot=[%.4f,%.4f] vol=[%.4f,%.4f] in %v",
		in.Type, spotN, volN, grid.Spot.Min, grid.Spot.Max, grid.Vol.Min, grid.Vol.Max, time.Since(start))

	img, err := g.render(grid, DefaultLabels(in.Type))
	if err != nil {
		logger.Errorf("heatmap render failed: %v", err)
		return nil, err
	}

	if err := writeFileAtomic(outputPath, img); err != nil {
		return nil, fmt.Errorf("write heatmap %s: %w", outputPath, err)
	}

	logger.Infof("heatmap written: %s (%d bytes) in %v", outputPath, len(img), time.Since(start))
	return grid, nil
}

// render calls the backend, converting panics and empty output into
// ErrRenderFailed.
func (g *Generator) render(grid *Grid, labels Labels) (img []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%w: %v", ErrRenderFailed, r)
		}
	}()

	img, err = g.renderer.Render(grid, labels)
	switch {
	case err != nil && errors.Is(err, ErrRenderFailed):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	case len(img) == 0:
		return nil, fmt.Errorf("%w: renderer returned no image", ErrRenderFailed)
	}
	return img, nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
