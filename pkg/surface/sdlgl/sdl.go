// Package sdlgl is a window surface made of an SDL2 window and an OpenGL context.
package sdlgl

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/flixor/mediabridge/pkg/surface"
	"github.com/flixor/mediabridge/pkg/thread"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

// Surface is an SDL window the engine renders into.
//
// The window lives on the main thread, the GL context is current
// on a dedicated render thread only.
type Surface struct {
	log *logger.Logger

	w      *sdl.Window
	ctx    sdl.GLContext
	worker *thread.Worker
	off    offscreen
	frame  *image.RGBA

	mu        sync.Mutex
	size      [2]int
	renderAPI atomic.Value
	valid     atomic.Bool
	once      sync.Once
}

func New(conf config.Surface, log *logger.Logger) (*Surface, error) {
	log = log.Module("sdl")
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl: %w", err)
	}
	if err := setGLAttrs(conf); err != nil {
		sdl.Quit()
		return nil, err
	}

	s := &Surface{log: log, size: [2]int{conf.Width, conf.Height}}
	flags := uint32(sdl.WINDOW_OPENGL | sdl.WINDOW_RESIZABLE)
	if conf.Headless {
		flags |= sdl.WINDOW_HIDDEN
	}

	var err error
	// window and context creation must happen in the main thread (macOS)
	thread.MainMaybe(func() {
		s.w, err = sdl.CreateWindow(conf.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
			int32(conf.Width), int32(conf.Height), flags)
		if err != nil {
			err = fmt.Errorf("window: %w", err)
			return
		}
		if s.ctx, err = s.w.GLCreateContext(); err != nil {
			err = errors.Join(fmt.Errorf("gl context: %w", err), s.w.Destroy())
			return
		}
		// release it for the render thread
		err = s.w.GLMakeCurrent(nil)
	})
	if err != nil {
		sdl.Quit()
		return nil, err
	}

	s.worker = thread.NewWorker()
	s.worker.Call(func() {
		if err = s.w.GLMakeCurrent(s.ctx); err != nil {
			return
		}
		if err = gl.InitWithProcAddrFunc(sdl.GLGetProcAddress); err != nil {
			return
		}
		ver, vendor, renderer, glsl := driverInfo()
		log.Info().Msgf("OpenGL %v, %v, %v, GLSL %v", ver, vendor, renderer, glsl)
		err = s.off.init(conf.Width, conf.Height)
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gl: %w", err)
	}
	s.frame = image.NewRGBA(image.Rect(0, 0, conf.Width, conf.Height))
	s.valid.Store(true)
	return s, nil
}

func setGLAttrs(conf config.Surface) error {
	profile := sdl.GL_CONTEXT_PROFILE_CORE
	if conf.GL.Compat {
		profile = sdl.GL_CONTEXT_PROFILE_COMPATIBILITY
	}
	for _, a := range [][2]int{
		{sdl.GL_CONTEXT_PROFILE_MASK, profile},
		{sdl.GL_CONTEXT_MAJOR_VERSION, int(conf.GL.VersionMajor)},
		{sdl.GL_CONTEXT_MINOR_VERSION, int(conf.GL.VersionMinor)},
		{sdl.GL_DOUBLEBUFFER, 1},
	} {
		if err := sdl.GLSetAttribute(sdl.GLattr(a[0]), a[1]); err != nil {
			return fmt.Errorf("gl attribute %v: %w", a[0], err)
		}
	}
	return nil
}

func (s *Surface) Valid() bool { return s.valid.Load() }

func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size[0], s.size[1]
}

func (s *Surface) Format() surface.Format { return surface.FormatGL }

// Do runs f on the render thread, f is dropped when the surface is closed.
func (s *Surface) Do(f func()) {
	if !s.worker.Call(f) {
		s.log.Debug().Msg("surface is closed, call dropped")
	}
}

func (s *Surface) MakeCurrent() error { return s.w.GLMakeCurrent(s.ctx) }

func (s *Surface) Resize(w, h int) error {
	if err := s.off.resize(w, h); err != nil {
		return err
	}
	s.frame = image.NewRGBA(image.Rect(0, 0, w, h))
	s.mu.Lock()
	s.size = [2]int{w, h}
	s.mu.Unlock()
	return nil
}

// Target has both the framebuffer (opengl) and the CPU frame (sw),
// the render context uses the one it can.
func (s *Surface) Target() engine.Target {
	return engine.Target{FBO: int(s.off.fbo), W: int(s.off.w), H: int(s.off.h), Image: s.frame}
}

func (s *Surface) Present() error {
	if s.api() == config.RenderSW {
		s.off.upload(s.frame)
	}
	w, h := s.w.GLGetDrawableSize()
	s.off.blit(w, h)
	s.w.GLSwap()
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("gl error: 0x%X", e)
	}
	return nil
}

func (s *Surface) api() string {
	if v, ok := s.renderAPI.Load().(string); ok {
		return v
	}
	return config.RenderOpenGL
}

func (s *Surface) RenderParams(api string) (engine.RenderParams, error) {
	switch api {
	case config.RenderOpenGL:
		s.renderAPI.Store(api)
		return engine.RenderParams{API: api, GetProcAddress: sdl.GLGetProcAddress}, nil
	case config.RenderSW:
		s.renderAPI.Store(api)
		return engine.RenderParams{API: api}, nil
	}
	return engine.RenderParams{}, fmt.Errorf("unsupported render api %q", api)
}

// PollEvents handles pending window events, call it on the main thread.
// It returns false when the window was closed.
func (s *Surface) PollEvents(onResize func(w, h int)) bool {
	open := true
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			open = false
		case *sdl.WindowEvent:
			switch e.Event {
			case sdl.WINDOWEVENT_SIZE_CHANGED:
				if onResize != nil {
					onResize(int(e.Data1), int(e.Data2))
				}
			case sdl.WINDOWEVENT_CLOSE:
				open = false
			}
		}
	}
	return open
}

// Close destroys the window, the surface must be unbound first.
func (s *Surface) Close() error {
	s.once.Do(func() {
		s.valid.Store(false)
		s.worker.Call(func() {
			s.off.destroy()
			_ = s.w.GLMakeCurrent(nil)
		})
		s.destroy()
	})
	return nil
}

func (s *Surface) destroy() {
	if s.worker != nil {
		s.worker.Stop()
	}
	thread.MainMaybe(func() {
		if s.ctx != nil {
			sdl.GLDeleteContext(s.ctx)
		}
		if s.w != nil {
			if err := s.w.Destroy(); err != nil {
				s.log.Warn().Err(err).Msg("couldn't destroy the window")
			}
		}
	})
	sdl.Quit()
	s.log.Debug().Msg("window destroyed")
}

// TryInit checks that a video device is available.
func TryInit() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}
	sdl.Quit()
	return nil
}
