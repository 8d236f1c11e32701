package engine

import (
	"errors"
	"reflect"
	"strings"

	"github.com/flixor/mediabridge/pkg/event"
)

var errShutdown = errors.New("engine shut down unexpectedly")

// pump reads native events until the engine is closed or shuts down.
// It never changes the instance state itself: end of file and faults
// are queued for the engine context.
func (h *Handle) pump() {
	defer close(h.pumpDone)
	last := make(map[string]any)
	for {
		ev := h.native.WaitEvent(-1)
		if h.closing.Load() {
			return
		}
		switch ev.ID {
		case EventNone:
		case EventShutdown:
			h.resolveLoad(loadResult{err: CodeGeneric}, true)
			h.inbox.put(notice{kind: noticeFault, err: newError("engine", ErrEngineInternal, errShutdown)})
			return
		case EventLogMessage:
			text := strings.TrimSpace(ev.Text)
			h.log.WithLevel(engineLogLevel(ev.Level)).Str("prefix", ev.Prefix).Msg(text)
			h.emit(event.NewLogMessage(ev.Level, ev.Prefix, text))
		case EventStartFile:
			h.startLoad()
		case EventFileLoaded:
			h.resolveLoad(loadResult{duration: h.queryDuration()}, false)
		case EventEndFile:
			h.endFile(ev)
		case EventPropertyChange:
			if prev, ok := last[ev.Name]; ok && reflect.DeepEqual(prev, ev.Value) {
				continue
			}
			last[ev.Name] = ev.Value
			h.emit(event.NewPropertyChanged(ev.Name, ev.Value))
		case EventVideoReconfig:
			w, wok := h.intProperty("dwidth")
			ht, hok := h.intProperty("dheight")
			if wok && hok && w > 0 && ht > 0 {
				h.emit(event.NewVideoReconfig(w, ht))
			}
		case EventQueueOverflow:
			h.log.Warn().Msg("engine event queue overflow, some events are lost")
		default:
			h.log.Trace().Msgf("engine event: %v", ev.ID)
		}
	}
}

func (h *Handle) endFile(ev RawEvent) {
	if h.loadPending() {
		h.log.Debug().Msgf("end of the previous file (%v) while loading", ev.Reason)
		return
	}
	switch ev.Reason {
	case EndError:
		code := ev.Error
		if code == CodeSuccess {
			code = CodeGeneric
		}
		if h.resolveLoad(loadResult{err: code}, false) {
			return
		}
		h.inbox.put(notice{kind: noticeFault, err: newError("playback", ErrEngineInternal, code)})
	case EndEOF:
		// nothing was played if the load is still pending
		if h.resolveLoad(loadResult{err: CodeNothingToPlay}, false) {
			return
		}
		h.inbox.put(notice{kind: noticeEOF})
	}
}

func (h *Handle) intProperty(name string) (int, bool) {
	v, err := h.native.GetProperty(name)
	if err != nil {
		return 0, false
	}
	f, ok := toFloat(v)
	return int(f), ok
}
