// Package mpv implements the native engine with libmpv.
//
// It needs libmpv headers and the mpv build tag:
//
//	go build -tags mpv ./cmd/bridged
package mpv
