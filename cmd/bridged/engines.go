package main

import _ "github.com/flixor/mediabridge/pkg/engine/sim"
