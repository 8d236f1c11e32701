//go:build mpv

package main

import _ "github.com/flixor/mediabridge/pkg/engine/mpv"
