package sim

import (
	"strconv"
	"time"

	"github.com/flixor/mediabridge/pkg/engine"
)

var writable = map[string]struct{}{
	"pause": {}, "volume": {}, "speed": {}, "mute": {}, "hwdec": {},
}

var readable = map[string]struct{}{
	"time-pos": {}, "playback-time": {}, "percent-pos": {}, "duration": {},
	"path": {}, "idle-active": {}, "dwidth": {}, "dheight": {},
	"demuxer-cache-time": {}, "paused-for-cache": {}, "hwdec-current": {},
}

const maxVolume = 130

func (e *Engine) get(name string) (any, error) {
	switch name {
	case "pause":
		return e.paused, nil
	case "volume":
		return e.volume, nil
	case "speed":
		return e.speed, nil
	case "mute":
		return e.mute, nil
	case "hwdec":
		return e.hwdec, nil
	case "hwdec-current":
		if e.media == nil || e.media.audio || e.hwdec == "no" {
			return "no", nil
		}
		return "sim", nil
	case "idle-active":
		return e.media == nil, nil
	case "paused-for-cache":
		return false, nil
	}
	if _, ok := readable[name]; !ok {
		return nil, engine.CodePropertyNotFound
	}
	m := e.media
	if m == nil {
		return nil, engine.CodePropertyUnavailable
	}
	switch name {
	case "time-pos", "playback-time":
		return e.pos.Seconds(), nil
	case "percent-pos":
		if m.duration == 0 {
			return nil, engine.CodePropertyUnavailable
		}
		return 100 * float64(e.pos) / float64(m.duration), nil
	case "duration":
		return m.duration.Seconds(), nil
	case "path":
		return m.uri, nil
	case "demuxer-cache-time":
		return min(e.pos+cacheAhead, m.duration).Seconds(), nil
	case "dwidth", "dheight":
		if m.audio {
			return nil, engine.CodePropertyUnavailable
		}
		if name == "dwidth" {
			return int64(m.width), nil
		}
		return int64(m.height), nil
	}
	return nil, engine.CodePropertyNotFound
}

func (e *Engine) set(name string, value any) error {
	switch name {
	case "pause", "mute":
		b, ok := toBool(value)
		if !ok {
			return engine.CodePropertyFormat
		}
		if name == "pause" {
			e.paused = b
		} else {
			e.mute = b
		}
	case "volume":
		v, ok := toFloat(value)
		if !ok {
			return engine.CodePropertyFormat
		}
		if v < 0 || v > maxVolume {
			return engine.CodeInvalidParameter
		}
		e.volume = v
	case "speed":
		v, ok := toFloat(value)
		if !ok {
			return engine.CodePropertyFormat
		}
		if v < 0.01 || v > 100 {
			return engine.CodeInvalidParameter
		}
		e.speed = v
	case "hwdec":
		s, ok := value.(string)
		if !ok {
			return engine.CodePropertyFormat
		}
		e.hwdec = s
	default:
		return engine.CodePropertyNotFound
	}
	return nil
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch x {
		case "yes", "true":
			return true, true
		case "no", "false":
			return false, true
		}
	}
	return false, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func fromSeconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
