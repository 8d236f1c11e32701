//go:build mpv

package mpv

/*
#include <stdint.h>
#include <stdlib.h>
#include <mpv/render.h>

void bridge_set_update_callback(mpv_render_context *rc, uintptr_t h);
int bridge_create_gl(mpv_render_context **res, mpv_handle *mpv, uintptr_t h);
int bridge_create_sw(mpv_render_context **res, mpv_handle *mpv);
int bridge_render_gl(mpv_render_context *rc, int fbo, int w, int h, int flip);
int bridge_render_sw(mpv_render_context *rc, int w, int h, size_t stride, void *pixels);
*/
import "C"

import (
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/engine"
)

type renderContext struct {
	rc     *C.mpv_render_context
	api    string
	params engine.RenderParams
	handle cgo.Handle

	mu     sync.Mutex
	update func()
	once   sync.Once
}

// NewRenderContext must be called on the thread with the current GL context
// for the opengl API.
func (c *Client) NewRenderContext(params engine.RenderParams) (engine.RenderContext, error) {
	r := &renderContext{api: params.API, params: params}
	r.handle = cgo.NewHandle(r)
	var rc C.int
	switch params.API {
	case config.RenderOpenGL:
		if params.GetProcAddress == nil {
			r.handle.Delete()
			return nil, engine.CodeInvalidParameter
		}
		rc = C.bridge_create_gl(&r.rc, c.h, C.uintptr_t(r.handle))
	case config.RenderSW:
		rc = C.bridge_create_sw(&r.rc, c.h)
	default:
		r.handle.Delete()
		return nil, engine.CodeUnsupported
	}
	if err := check(rc); err != nil {
		r.handle.Delete()
		return nil, err
	}
	C.bridge_set_update_callback(r.rc, C.uintptr_t(r.handle))
	return r, nil
}

func (r *renderContext) SetUpdateCallback(fn func()) {
	r.mu.Lock()
	r.update = fn
	r.mu.Unlock()
}

func (r *renderContext) fire() {
	r.mu.Lock()
	fn := r.update
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *renderContext) Render(t engine.Target) error {
	// required with advanced control before each render
	C.mpv_render_context_update(r.rc)
	if r.api == config.RenderSW {
		img := t.Image
		if img == nil || len(img.Pix) == 0 {
			return engine.CodeInvalidParameter
		}
		rc := C.bridge_render_sw(r.rc, C.int(t.W), C.int(t.H), C.size_t(img.Stride), unsafe.Pointer(&img.Pix[0]))
		if err := check(rc); err != nil {
			return err
		}
		// rgb0 leaves the padding byte undefined
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
		return nil
	}
	flip := C.int(0)
	if t.FlipY {
		flip = 1
	}
	return check(C.bridge_render_gl(r.rc, C.int(t.FBO), C.int(t.W), C.int(t.H), flip))
}

func (r *renderContext) ReportSwap() { C.mpv_render_context_report_swap(r.rc) }

func (r *renderContext) Free() {
	r.once.Do(func() {
		C.mpv_render_context_free(r.rc)
		r.handle.Delete()
	})
}
