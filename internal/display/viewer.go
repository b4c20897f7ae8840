package display

import (
	"sync"

	"github.com/contactkeval/option-surface/internal/logger"
)

// LoadFailedNotice is shown when a generated heatmap cannot be loaded.
const LoadFailedNotice = "Failed to load heatmap image."

// Viewer holds the heatmap currently on screen.
type Viewer struct {
	mu     sync.Mutex
	tex    *Texture
	notice string
}

// Reload releases the current texture and loads path in its place. On
// failure the view stays empty and Notice reports LoadFailedNotice.
func (v *Viewer) Reload(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.tex != nil {
		v.tex.Release()
		v.tex = nil
	}
	v.notice = ""

	tex, err := LoadTexture(path)
	if err != nil {
		v.notice = LoadFailedNotice
		logger.Errorf("viewer: %v", err)
		return err
	}
	v.tex = tex
	w, h := tex.Size()
	logger.Debugf("viewer: loaded %s (%dx%d)", path, w, h)
	return nil
}

// Texture returns the texture on screen, or nil.
func (v *Viewer) Texture() *Texture {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tex
}

// Notice returns the pending user notification, if any.
func (v *Viewer) Notice() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.notice
}

// Clear empties the view.
func (v *Viewer) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tex != nil {
		v.tex.Release()
		v.tex = nil
	}
	v.notice = ""
}
