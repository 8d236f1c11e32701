// Package surface drives engine frames into host-owned drawables.
package surface

import (
	"errors"

	"github.com/flixor/mediabridge/pkg/engine"
)

var (
	ErrSurfaceUnavailable = errors.New("surface unavailable")
	ErrAlreadyBound       = errors.New("surface already bound")
	ErrNotBound           = errors.New("no surface bound")
	ErrNoRenderer         = errors.New("no render context")
)

type Format string

const (
	FormatRGBA Format = "rgba"
	FormatGL   Format = "gl-rgba8"
)

// Surface is a GPU-presentable drawable owned by the host.
type Surface interface {
	// Valid reports whether the context behind the surface is usable.
	Valid() bool
	Size() (w, h int)
	Format() Format
	// Do runs f where the surface context can be used (its OS thread).
	Do(f func())
	MakeCurrent() error
	// Resize changes the backing drawable, called inside Do.
	Resize(w, h int) error
	// Target is where the next frame goes, called inside Do.
	Target() engine.Target
	// Present shows the target, called inside Do.
	Present() error
	// RenderParams are the engine render context params for the api.
	RenderParams(api string) (engine.RenderParams, error)
}

// Renderer makes engine render contexts.
type Renderer interface {
	NewRenderContext(params engine.RenderParams) (engine.RenderContext, error)
}
