// Package sim is an in-process media engine with the event and error
// behavior of libmpv. It decodes nothing: media is probed by name,
// played by a clock and rendered as a test pattern.
package sim

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/logger"
)

const (
	defaultTick = 50 * time.Millisecond
	queueSize   = 512
	cacheAhead  = 10 * time.Second
)

func init() {
	engine.Register("sim", func(log *logger.Logger) (engine.Native, error) { return New(log), nil })
}

// Engine is a simulated native engine.
type Engine struct {
	log *logger.Logger

	mu          sync.Mutex
	initialized bool
	destroyed   bool
	tick        time.Duration
	logLevel    int
	observed    map[string]struct{}
	paused      bool
	volume      float64
	speed       float64
	mute        bool
	hwdec       string
	media       *media
	pos         time.Duration
	gen         uint64
	render      *renderContext

	events   chan engine.RawEvent
	overflow atomic.Bool
	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
}

func New(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		log:      log.Module("sim"),
		tick:     defaultTick,
		observed: make(map[string]struct{}),
		paused:   true,
		volume:   100,
		speed:    1,
		hwdec:    "no",
		events:   make(chan engine.RawEvent, queueSize),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (e *Engine) SetOption(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch name {
	case "vo", "idle", "keep-open", "terminal", "cache":
		return nil
	case "sim-tick":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return engine.CodeOptionFormat
		}
		e.tick = d
		return nil
	}
	if _, ok := writable[name]; !ok {
		return engine.CodeOptionNotFound
	}
	if err := e.set(name, value); err != nil {
		return engine.CodeOptionFormat
	}
	return nil
}

func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return engine.CodeInvalidParameter
	}
	e.initialized = true
	go e.run(e.tick)
	return nil
}

func (e *Engine) RequestLogMessages(level string) error {
	rank, ok := levels[level]
	if !ok {
		return engine.CodeInvalidParameter
	}
	e.mu.Lock()
	e.logLevel = rank
	e.mu.Unlock()
	return nil
}

func (e *Engine) Command(args ...string) error {
	if len(args) == 0 {
		return engine.CodeInvalidParameter
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return engine.CodeUninitialized
	}
	switch args[0] {
	case "loadfile":
		if len(args) < 2 || (len(args) > 2 && args[2] != "replace") {
			return engine.CodeInvalidParameter
		}
		e.loadfile(args[1])
	case "stop":
		e.gen++
		e.unload(engine.EndStop, engine.CodeSuccess)
	case "seek":
		if len(args) < 2 {
			return engine.CodeInvalidParameter
		}
		return e.seek(args[1], args[2:]...)
	case "quit":
		e.gen++
		e.unload(engine.EndQuit, engine.CodeSuccess)
		e.push(engine.RawEvent{ID: engine.EventShutdown})
	default:
		return engine.CodeInvalidParameter
	}
	return nil
}

func (e *Engine) SetProperty(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return engine.CodeUninitialized
	}
	if name == "time-pos" {
		v, ok := toFloat(value)
		if !ok {
			return engine.CodePropertyFormat
		}
		return e.seek(strconv.FormatFloat(v, 'f', -1, 64), "absolute")
	}
	if _, ok := writable[name]; !ok {
		if _, known := readable[name]; known {
			return engine.CodePropertyUnavailable
		}
		return engine.CodePropertyNotFound
	}
	if err := e.set(name, value); err != nil {
		return err
	}
	e.notify(name)
	return nil
}

func (e *Engine) GetProperty(name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, engine.CodeUninitialized
	}
	return e.get(name)
}

// ObserveProperty starts reporting name, the current value is reported at once.
func (e *Engine) ObserveProperty(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := readable[name]; !ok {
		if _, ok := writable[name]; !ok {
			return engine.CodePropertyNotFound
		}
	}
	e.observed[name] = struct{}{}
	e.notify(name)
	return nil
}

func (e *Engine) WaitEvent(timeout time.Duration) engine.RawEvent {
	if e.overflow.CompareAndSwap(true, false) {
		return engine.RawEvent{ID: engine.EventQueueOverflow}
	}
	var after <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case ev := <-e.events:
		return ev
	case <-e.wake:
	case <-after:
	case <-e.quit:
		return engine.RawEvent{ID: engine.EventShutdown}
	}
	return engine.RawEvent{ID: engine.EventNone}
}

func (e *Engine) Wakeup() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	running := e.initialized
	e.media = nil
	e.render = nil
	e.mu.Unlock()

	close(e.quit)
	if running {
		<-e.done
	}
}

// Fail injects a playback error with the given code, as if decoding broke.
func (e *Engine) Fail(code engine.Code) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Debug().Msgf("injected failure: %v", code)
	e.logf("error", "cplayer", "playback failed: %v", code)
	e.unload(engine.EndError, code)
}

// Crash makes the engine shut down by itself.
func (e *Engine) Crash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.media = nil
	e.push(engine.RawEvent{ID: engine.EventShutdown})
}

// Position returns the playback clock.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *Engine) run(tick time.Duration) {
	defer close(e.done)
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-e.quit:
			return
		case now := <-t.C:
			if fn := e.advance(now.Sub(last)); fn != nil {
				fn()
			}
			last = now
		}
	}
}

// advance moves the clock and returns the render update callback
// if a new frame is due.
func (e *Engine) advance(dt time.Duration) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.media
	if m == nil || e.paused {
		return nil
	}
	e.pos += time.Duration(float64(dt) * e.speed)
	if m.failAt > 0 && e.pos >= m.failAt {
		e.pos = m.failAt
		e.logf("error", "ffmpeg", "decoding failed at %v", m.failAt)
		e.unload(engine.EndError, engine.CodeGeneric)
		return nil
	}
	if e.pos >= m.duration {
		e.pos = m.duration
		e.notify("time-pos")
		e.unload(engine.EndEOF, engine.CodeSuccess)
		return nil
	}
	e.notify("time-pos")
	e.notify("demuxer-cache-time")
	return e.frameReady()
}

func (e *Engine) loadfile(uri string) {
	e.gen++
	gen := e.gen
	e.unload(engine.EndStop, engine.CodeSuccess)
	e.push(engine.RawEvent{ID: engine.EventStartFile})
	go func() {
		m, code := probe(uri)
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen || e.destroyed {
			return
		}
		if code != engine.CodeSuccess {
			e.logf("error", "cplayer", "failed to open %v: %v", uri, code)
			e.push(engine.RawEvent{ID: engine.EventEndFile, Reason: engine.EndError, Error: code})
			return
		}
		e.media, e.pos = m, 0
		e.logf("info", "cplayer", "Playing: %v", uri)
		e.push(engine.RawEvent{ID: engine.EventFileLoaded})
		if !m.audio {
			e.push(engine.RawEvent{ID: engine.EventVideoReconfig})
		}
		for _, name := range []string{"duration", "time-pos", "demuxer-cache-time", "path", "idle-active"} {
			e.notify(name)
		}
		e.push(engine.RawEvent{ID: engine.EventPlaybackRestart})
	}()
}

// unload ends the current media, if there is one, with reason.
func (e *Engine) unload(reason engine.EndReason, code engine.Code) {
	if e.media == nil {
		return
	}
	e.media, e.pos = nil, 0
	e.push(engine.RawEvent{ID: engine.EventEndFile, Reason: reason, Error: code})
	e.notify("idle-active")
}

func (e *Engine) seek(target string, flags ...string) error {
	if e.media == nil {
		return engine.CodeCommand
	}
	v, err := strconv.ParseFloat(target, 64)
	if err != nil {
		return engine.CodeInvalidParameter
	}
	mode := "relative"
	if len(flags) > 0 {
		mode = flags[0]
	}
	pos := fromSeconds(v)
	switch mode {
	case "absolute":
	case "relative":
		pos += e.pos
	case "absolute-percent":
		pos = time.Duration(v / 100 * float64(e.media.duration))
	default:
		return engine.CodeInvalidParameter
	}
	if pos < 0 {
		pos = 0
	}
	if pos > e.media.duration {
		pos = e.media.duration
	}
	e.pos = pos
	e.push(engine.RawEvent{ID: engine.EventSeek})
	e.push(engine.RawEvent{ID: engine.EventPlaybackRestart})
	e.notify("time-pos")
	return nil
}

// notify reports an observed property with its current value,
// unavailable properties are reported as nil.
func (e *Engine) notify(name string) {
	if _, ok := e.observed[name]; !ok {
		return
	}
	v, err := e.get(name)
	if err != nil {
		v = nil
	}
	e.push(engine.RawEvent{ID: engine.EventPropertyChange, Name: name, Value: v})
}

func (e *Engine) frameReady() func() {
	if e.render == nil {
		return nil
	}
	return e.render.updateFn()
}

func (e *Engine) push(ev engine.RawEvent) {
	select {
	case e.events <- ev:
	default:
		e.overflow.Store(true)
	}
}

var levels = map[string]int{
	"no": 0, "fatal": 10, "error": 20, "warn": 30, "info": 40, "v": 50, "debug": 60, "trace": 70,
}

func (e *Engine) logf(level, prefix, format string, args ...any) {
	if levels[level] > e.logLevel {
		return
	}
	text := fmt.Sprintf(format, args...)
	e.push(engine.RawEvent{ID: engine.EventLogMessage, Level: level, Prefix: prefix, Text: text + "\n"})
}
