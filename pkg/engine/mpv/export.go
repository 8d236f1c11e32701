//go:build mpv

package mpv

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

//export goRenderUpdate
func goRenderUpdate(ctx unsafe.Pointer) {
	if r, ok := cgo.Handle(uintptr(ctx)).Value().(*renderContext); ok {
		r.fire()
	}
}

//export goGetProcAddress
func goGetProcAddress(ctx unsafe.Pointer, name *C.char) unsafe.Pointer {
	r, ok := cgo.Handle(uintptr(ctx)).Value().(*renderContext)
	if !ok || r.params.GetProcAddress == nil {
		return nil
	}
	return r.params.GetProcAddress(C.GoString(name))
}
