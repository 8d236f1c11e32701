package sim

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/engine"
	"golang.org/x/image/draw"
)

var bars = [...]color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

var (
	track    = image.NewUniform(color.RGBA{32, 32, 32, 255})
	progress = image.NewUniform(color.RGBA{255, 255, 255, 255})
)

// renderContext draws color bars with a progress strip
// scaled into the target image. It works for both render APIs
// since it only ever writes the target's CPU-side image.
type renderContext struct {
	e *Engine

	mu     sync.Mutex
	update func()
	frame  *image.RGBA
	swaps  atomic.Uint64
}

func (e *Engine) NewRenderContext(params engine.RenderParams) (engine.RenderContext, error) {
	switch params.API {
	case config.RenderOpenGL, config.RenderSW:
	default:
		return nil, engine.CodeUnsupported
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, engine.CodeUninitialized
	}
	if e.render != nil {
		return nil, engine.CodeInvalidParameter
	}
	e.render = &renderContext{e: e}
	return e.render, nil
}

func (r *renderContext) SetUpdateCallback(fn func()) {
	r.mu.Lock()
	r.update = fn
	r.mu.Unlock()
}

func (r *renderContext) updateFn() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update
}

func (r *renderContext) Render(t engine.Target) error {
	if t.Image == nil {
		return engine.CodeUnsupported
	}
	r.e.mu.Lock()
	m, pos := r.e.media, r.e.pos
	r.e.mu.Unlock()

	rect := image.Rect(0, 0, t.W, t.H).Intersect(t.Image.Bounds())
	if rect.Empty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == nil || m.audio {
		draw.Draw(t.Image, rect, image.Black, image.Point{}, draw.Src)
		return nil
	}
	src := r.pattern(m, pos.Seconds(), m.duration.Seconds())
	draw.ApproxBiLinear.Scale(t.Image, rect, src, src.Bounds(), draw.Src, nil)
	if t.FlipY {
		flip(t.Image, rect)
	}
	return nil
}

func (r *renderContext) ReportSwap() { r.swaps.Add(1) }

// Swaps returns the number of presented frames.
func (r *renderContext) Swaps() uint64 { return r.swaps.Load() }

func (r *renderContext) Free() {
	r.e.mu.Lock()
	if r.e.render == r {
		r.e.render = nil
	}
	r.e.mu.Unlock()
}

// pattern returns the source frame at pos, bars are drawn once per size.
func (r *renderContext) pattern(m *media, pos, duration float64) *image.RGBA {
	w, h := m.width, m.height
	if r.frame == nil || r.frame.Rect.Dx() != w || r.frame.Rect.Dy() != h {
		r.frame = image.NewRGBA(image.Rect(0, 0, w, h))
		for i, c := range bars {
			x0, x1 := i*w/len(bars), (i+1)*w/len(bars)
			draw.Draw(r.frame, image.Rect(x0, 0, x1, h), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
	strip := image.Rect(0, h-max(h/16, 1), w, h)
	draw.Draw(r.frame, strip, track, image.Point{}, draw.Src)
	if duration > 0 {
		done := strip
		done.Max.X = int(float64(w) * pos / duration)
		draw.Draw(r.frame, done, progress, image.Point{}, draw.Src)
	}
	return r.frame
}

func flip(img *image.RGBA, rect image.Rectangle) {
	rowLen := rect.Dx() * 4
	tmp := make([]byte, rowLen)
	for top, bottom := rect.Min.Y, rect.Max.Y-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.PixOffset(rect.Min.X, top)
		b := img.PixOffset(rect.Min.X, bottom)
		copy(tmp, img.Pix[a:a+rowLen])
		copy(img.Pix[a:a+rowLen], img.Pix[b:b+rowLen])
		copy(img.Pix[b:b+rowLen], tmp)
	}
}
