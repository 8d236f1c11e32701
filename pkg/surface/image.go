package surface

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/engine"
)

// Image is an in-memory RGBA surface for headless hosts.
// Frames are drawn into a back buffer and copied to the front one on Present.
type Image struct {
	mu     sync.RWMutex
	back   *image.RGBA
	front  *image.RGBA
	frames atomic.Uint64
	valid  atomic.Bool

	// OnPresent is called with the presented frame, it must not keep it.
	OnPresent func(frame *image.RGBA)
}

func NewImage(w, h int) *Image {
	i := Image{
		back:  image.NewRGBA(image.Rect(0, 0, w, h)),
		front: image.NewRGBA(image.Rect(0, 0, w, h)),
	}
	i.valid.Store(w > 0 && h > 0)
	return &i
}

func (i *Image) Valid() bool { return i.valid.Load() }

// Invalidate marks the surface as lost, it can't be bound after that.
func (i *Image) Invalidate() { i.valid.Store(false) }

func (i *Image) Size() (int, int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.back.Rect.Dx(), i.back.Rect.Dy()
}

func (i *Image) Format() Format     { return FormatRGBA }
func (i *Image) Do(f func())        { f() }
func (i *Image) MakeCurrent() error { return nil }

func (i *Image) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("bad size %vx%v", w, h)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.back = image.NewRGBA(image.Rect(0, 0, w, h))
	i.front = image.NewRGBA(image.Rect(0, 0, w, h))
	return nil
}

func (i *Image) Target() engine.Target {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return engine.Target{W: i.back.Rect.Dx(), H: i.back.Rect.Dy(), Image: i.back}
}

func (i *Image) Present() error {
	i.mu.Lock()
	copy(i.front.Pix, i.back.Pix)
	front := i.front
	i.mu.Unlock()
	i.frames.Add(1)
	if i.OnPresent != nil {
		i.OnPresent(front)
	}
	return nil
}

func (i *Image) RenderParams(api string) (engine.RenderParams, error) {
	if api != config.RenderSW {
		return engine.RenderParams{}, errors.New("image surfaces render only in software")
	}
	return engine.RenderParams{API: api}, nil
}

// Frames returns the number of presented frames.
func (i *Image) Frames() uint64 { return i.frames.Load() }

// Snapshot returns a copy of the last presented frame.
func (i *Image) Snapshot() *image.RGBA {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := image.NewRGBA(i.front.Rect)
	copy(out.Pix, i.front.Pix)
	return out
}
