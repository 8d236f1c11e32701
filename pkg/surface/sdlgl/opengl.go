package sdlgl

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v3.3-core/gl"
)

// offscreen is the framebuffer the engine renders into.
// Software frames are uploaded into its texture instead.
type offscreen struct {
	fbo, tex uint32
	w, h     int32
}

func (o *offscreen) init(w, h int) error {
	o.w, o.h = int32(w), int32(h)

	gl.GenTextures(1, &o.tex)
	gl.BindTexture(gl.TEXTURE_2D, o.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, o.w, o.h, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &o.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, o.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, o.tex, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("framebuffer incomplete: 0x%X, gl error: 0x%X", status, gl.GetError())
	}
	return nil
}

func (o *offscreen) resize(w, h int) error {
	o.destroy()
	return o.init(w, h)
}

func (o *offscreen) destroy() {
	gl.DeleteFramebuffers(1, &o.fbo)
	gl.DeleteTextures(1, &o.tex)
	o.fbo, o.tex = 0, 0
}

// upload copies a software frame into the texture.
func (o *offscreen) upload(img *image.RGBA) {
	gl.BindTexture(gl.TEXTURE_2D, o.tex)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, o.w, o.h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// blit draws the framebuffer onto the window, upside down
// because rows go top to bottom in both engine outputs.
func (o *offscreen) blit(winW, winH int32) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, o.fbo)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.Viewport(0, 0, winW, winH)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.BlitFramebuffer(0, 0, o.w, o.h, 0, winH, winW, 0, gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func driverInfo() (version, vendor, renderer, glsl string) {
	return gl.GoStr(gl.GetString(gl.VERSION)),
		gl.GoStr(gl.GetString(gl.VENDOR)),
		gl.GoStr(gl.GetString(gl.RENDERER)),
		gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
}
