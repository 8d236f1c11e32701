package surface

import (
	"fmt"
	"sync"
	"time"

	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/logger"
)

// Adapter binds one surface at a time to the engine render context
// and runs render passes on request.
//
// A render pass holds the frame lock. Unbind takes the same lock,
// so it returns only after an in-flight pass is done and no pass
// touches the surface afterwards.
type Adapter struct {
	api      string
	renderer Renderer
	log      *logger.Logger

	mu    sync.Mutex
	frame sync.Mutex
	bound *binding

	sizeMu  sync.Mutex
	pending *[2]int

	kick chan struct{}
}

type binding struct {
	surface Surface
	rc      engine.RenderContext
	quit    chan struct{}
	done    chan struct{}
}

func NewAdapter(renderer Renderer, api string, log *logger.Logger) *Adapter {
	return &Adapter{
		api:      api,
		renderer: renderer,
		log:      log.Module("surface"),
		kick:     make(chan struct{}, 1),
	}
}

// Bind attaches s and starts rendering into it.
func (a *Adapter) Bind(s Surface) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound != nil {
		return ErrAlreadyBound
	}
	if s == nil || !s.Valid() {
		return ErrSurfaceUnavailable
	}
	params, err := s.RenderParams(a.api)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}
	if a.renderer == nil {
		return ErrNoRenderer
	}

	var rc engine.RenderContext
	s.Do(func() {
		if err = s.MakeCurrent(); err != nil {
			err = fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
			return
		}
		if rc, err = a.renderer.NewRenderContext(params); err != nil {
			err = fmt.Errorf("%w: %w", ErrNoRenderer, err)
		}
	})
	if err != nil {
		return err
	}
	if rc == nil {
		return ErrSurfaceUnavailable
	}

	b := &binding{surface: s, rc: rc, quit: make(chan struct{}), done: make(chan struct{})}
	a.sizeMu.Lock()
	a.pending = nil
	a.sizeMu.Unlock()
	a.frame.Lock()
	a.bound = b
	a.frame.Unlock()

	rc.SetUpdateCallback(a.RequestRender)
	go a.loop(b)
	a.RequestRender()

	w, h := s.Size()
	a.log.Info().Msgf("bound %vx%v %v surface (%v)", w, h, s.Format(), a.api)
	surfaceBound.Set(1)
	return nil
}

// Unbind detaches the surface. It blocks while a render pass
// is in flight and frees the render context.
func (a *Adapter) Unbind() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.bound
	if b == nil {
		return ErrNotBound
	}
	b.rc.SetUpdateCallback(nil)
	close(b.quit)

	a.frame.Lock()
	a.bound = nil
	a.frame.Unlock()
	<-b.done

	b.surface.Do(func() {
		if err := b.surface.MakeCurrent(); err != nil {
			a.log.Warn().Err(err).Msg("surface context is lost on unbind")
		}
		b.rc.Free()
	})
	a.log.Info().Msg("unbound surface")
	surfaceBound.Set(0)
	return nil
}

// Bound reports whether a surface is attached.
func (a *Adapter) Bound() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bound != nil
}

// OnResize records a new surface size, the next render pass applies it
// before drawing. Never blocks.
func (a *Adapter) OnResize(w, h int) {
	if w <= 0 || h <= 0 {
		a.log.Debug().Msgf("ignored resize to %vx%v", w, h)
		return
	}
	a.sizeMu.Lock()
	a.pending = &[2]int{w, h}
	a.sizeMu.Unlock()
	a.RequestRender()
}

// RequestRender asks for one render pass. Requests made while
// one is already queued are merged into it. Never blocks.
func (a *Adapter) RequestRender() {
	select {
	case a.kick <- struct{}{}:
	default:
		renderCoalesced.Inc()
	}
}

func (a *Adapter) takeResize() (w, h int, ok bool) {
	a.sizeMu.Lock()
	defer a.sizeMu.Unlock()
	if a.pending == nil {
		return 0, 0, false
	}
	w, h = a.pending[0], a.pending[1]
	a.pending = nil
	return w, h, true
}

func (a *Adapter) loop(b *binding) {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			return
		case <-a.kick:
			a.render(b)
		}
	}
}

func (a *Adapter) render(b *binding) {
	a.frame.Lock()
	defer a.frame.Unlock()
	if a.bound != b {
		return
	}
	start := time.Now()
	var err error
	b.surface.Do(func() { err = a.pass(b) })
	renderDuration.Observe(time.Since(start).Seconds())
	renderPasses.Inc()
	if err != nil {
		renderErrors.Inc()
		a.log.Warn().Err(err).Msg("render pass failed")
	}
}

// pass renders one frame on the surface thread.
func (a *Adapter) pass(b *binding) error {
	s := b.surface
	if err := s.MakeCurrent(); err != nil {
		return err
	}
	if w, h, ok := a.takeResize(); ok {
		if err := s.Resize(w, h); err != nil {
			return fmt.Errorf("resize %vx%v: %w", w, h, err)
		}
		a.log.Debug().Msgf("resized to %vx%v", w, h)
	}
	if err := b.rc.Render(s.Target()); err != nil {
		return err
	}
	if err := s.Present(); err != nil {
		return err
	}
	b.rc.ReportSwap()
	return nil
}
