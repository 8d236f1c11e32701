package engine

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
)

const defaultOpenTimeout = 10 * time.Second

// Handle owns one native engine instance and keeps its playback state.
//
// Mutating calls (Open, Play, Pause, Stop, Seek, SetProperty, ApplyPending,
// Close) must come from a single goroutine, the engine context.
// State queries are safe from anywhere.
type Handle struct {
	native Native
	conf   config.Engine
	emit   func(event.Event)
	log    *logger.Logger

	mu       sync.RWMutex
	state    State
	uri      string
	duration time.Duration
	volume   float64

	loadMu sync.Mutex
	load   chan loadResult
	// the engine has started the pending load
	loadStarted bool

	inbox *inbox

	renderMu sync.Mutex
	render   *trackedRender

	closing  atomic.Bool
	pumpDone chan struct{}
	once     sync.Once
}

// Snapshot is a point-in-time copy of the instance attributes.
type Snapshot struct {
	State    State         `json:"state"`
	URI      string        `json:"uri,omitempty"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Volume   float64       `json:"volume"`
}

type loadResult struct {
	duration time.Duration
	err      error
}

// New configures and initializes the native engine and starts
// pumping its events into emit.
// The native engine is destroyed if the initialization fails.
func New(native Native, conf config.Engine, emit func(event.Event), log *logger.Logger) (*Handle, error) {
	if emit == nil {
		emit = func(event.Event) {}
	}
	if conf.OpenTimeout <= 0 {
		conf.OpenTimeout = defaultOpenTimeout
	}
	h := &Handle{
		native:   native,
		conf:     conf,
		emit:     emit,
		log:      log,
		state:    Uninitialized,
		volume:   100,
		inbox:    newInbox(),
		pumpDone: make(chan struct{}),
	}

	if err := configure(native, conf); err != nil {
		native.Destroy()
		return nil, newError("create", ErrEngineInternal, err)
	}
	if err := native.Initialize(); err != nil {
		native.Destroy()
		return nil, newError("create", ErrEngineInternal, err)
	}
	if conf.LogLevel != "" && conf.LogLevel != "no" {
		if err := native.RequestLogMessages(conf.LogLevel); err != nil {
			log.Warn().Err(err).Msgf("engine logs at %v are unavailable", conf.LogLevel)
		}
	}
	for _, name := range conf.Observe {
		if err := native.ObserveProperty(name); err != nil {
			log.Warn().Err(err).Msgf("can't observe %v", name)
		}
	}

	go h.pump()
	log.Debug().Msgf("engine is ready, hwaccel: %v, render: %v", conf.HwAccel, conf.RenderBackend)
	return h, nil
}

// Open loads media from uri. The media is loaded paused.
// Local files are checked before the engine gets them.
func (h *Handle) Open(uri string) error {
	const op = "open"
	s := h.State()
	if !s.CanOpen() {
		return h.transitionError(op, s)
	}
	if err := checkLocal(uri); err != nil {
		return newError(op, ErrIO, err)
	}
	// the engine keeps the last pause value between files
	if err := h.native.SetProperty("pause", true); err != nil {
		h.log.Debug().Err(err).Msg("couldn't pause before load")
	}

	wait := h.expectLoad()
	if err := h.native.Command("loadfile", uri, "replace"); err != nil {
		h.cancelLoad(wait)
		return newError(op, loadKind(err), err)
	}

	var res loadResult
	select {
	case res = <-wait:
	case <-time.After(h.conf.OpenTimeout):
		h.cancelLoad(wait)
		_ = h.native.Command("stop")
		return newError(op, ErrEngineInternal, fmt.Errorf("no load result in %v", h.conf.OpenTimeout))
	}
	if res.err != nil {
		return newError(op, loadKind(res.err), res.err)
	}

	h.setState(Ready, func() {
		h.uri = uri
		h.duration = res.duration
	})
	h.log.Info().Msgf("opened %v [%v]", uri, res.duration)
	h.emit(event.NewFileLoaded(uri, res.duration))
	h.emit(event.NewStateChanged(s, Ready))
	return nil
}

func (h *Handle) Play() error {
	const op = "play"
	s := h.State()
	if s == Playing {
		return nil
	}
	if !s.CanPlay() {
		return h.transitionError(op, s)
	}
	if err := h.native.SetProperty("pause", false); err != nil {
		return newError(op, ErrEngineInternal, err)
	}
	h.setState(Playing, nil)
	h.emit(event.NewPropertyChanged("pause", false))
	h.emit(event.NewStateChanged(s, Playing))
	return nil
}

func (h *Handle) Pause() error {
	const op = "pause"
	s := h.State()
	if s == Paused {
		return nil
	}
	if !s.CanPause() {
		return h.transitionError(op, s)
	}
	if err := h.native.SetProperty("pause", true); err != nil {
		return newError(op, ErrEngineInternal, err)
	}
	h.setState(Paused, nil)
	h.emit(event.NewPropertyChanged("pause", true))
	h.emit(event.NewStateChanged(s, Paused))
	return nil
}

func (h *Handle) Stop() error {
	const op = "stop"
	s := h.State()
	switch {
	case s == Uninitialized || s == Stopped:
		return nil
	case s == Errored:
		return h.transitionError(op, s)
	}
	if err := h.native.Command("stop"); err != nil {
		return newError(op, ErrEngineInternal, err)
	}
	h.setState(Stopped, func() {
		h.uri = ""
		h.duration = 0
	})
	h.emit(event.NewStateChanged(s, Stopped))
	return nil
}

// Seek moves to an absolute position.
// Out of range positions are clamped into [0, duration], or rejected
// with ErrInvalidRange in strict mode. An unknown (zero) duration
// bounds the position only from below.
func (h *Handle) Seek(pos time.Duration) error {
	const op = "seek"
	s := h.State()
	if !s.HasMedia() {
		return h.transitionError(op, s)
	}
	dur := h.Duration()
	if dur <= 0 {
		dur = h.queryDuration()
	}
	target, err := clamp(pos, dur, h.conf.StrictSeek)
	if err != nil {
		return newError(op, ErrInvalidRange, err)
	}
	if err := h.native.Command("seek", seconds(target), "absolute"); err != nil {
		return newError(op, ErrEngineInternal, err)
	}
	h.emit(event.NewSeek(target))
	return nil
}

// SetProperty writes an engine property.
// The pause property goes through Play and Pause to keep the state.
func (h *Handle) SetProperty(name string, value any) error {
	const op = "set property"
	if name == "pause" {
		paused, ok := value.(bool)
		if !ok {
			return newError(op, ErrInvalidValue, fmt.Errorf("pause wants a bool, got %T", value))
		}
		if paused {
			return h.Pause()
		}
		return h.Play()
	}
	if s := h.State(); s == Errored {
		return h.transitionError(op, s)
	}
	if err := h.native.SetProperty(name, value); err != nil {
		return newError(op, propertyKind(err), fmt.Errorf("%v: %w", name, err))
	}
	if name == "volume" {
		if v, ok := toFloat(value); ok {
			h.mu.Lock()
			h.volume = v
			h.mu.Unlock()
		}
	}
	h.emit(event.NewPropertyChanged(name, value))
	return nil
}

// Property reads an engine property.
func (h *Handle) Property(name string) (any, error) {
	v, err := h.native.GetProperty(name)
	if err != nil {
		return nil, newError("get property", propertyKind(err), fmt.Errorf("%v: %w", name, err))
	}
	return v, nil
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) Duration() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.duration
}

func (h *Handle) Snapshot() Snapshot {
	h.mu.RLock()
	snap := Snapshot{State: h.state, URI: h.uri, Duration: h.duration, Volume: h.volume}
	h.mu.RUnlock()
	if snap.State.HasMedia() {
		if v, err := h.native.GetProperty("time-pos"); err == nil {
			if f, ok := toFloat(v); ok {
				snap.Position = fromSeconds(f)
			}
		}
	}
	return snap
}

// Pending signals that engine notifications wait for ApplyPending.
func (h *Handle) Pending() <-chan struct{} { return h.inbox.signal }

// ApplyPending applies the notifications (end of file, faults)
// the event pump has queued since the last call.
func (h *Handle) ApplyPending() {
	for _, n := range h.inbox.take() {
		switch n.kind {
		case noticeEOF:
			h.endOfFile()
		case noticeFault:
			h.Fault(n.err)
		}
	}
}

func (h *Handle) endOfFile() {
	s := h.State()
	if !s.HasMedia() {
		return
	}
	h.setState(Stopped, func() {
		h.uri = ""
		h.duration = 0
	})
	h.emit(event.NewEndOfFile())
	h.emit(event.NewStateChanged(s, Stopped))
}

// Fault moves the instance into the terminal Errored state.
func (h *Handle) Fault(err error) {
	s := h.State()
	if s == Errored {
		return
	}
	h.setState(Errored, nil)
	h.log.Error().Err(err).Msgf("engine fault in %v", s)
	h.emit(event.NewError(int(CodeOf(err)), err.Error()))
	h.emit(event.NewStateChanged(s, Errored))
}

// NewRenderContext creates the only render context of the instance.
// It has to be freed before another one can be created.
func (h *Handle) NewRenderContext(params RenderParams) (RenderContext, error) {
	h.renderMu.Lock()
	defer h.renderMu.Unlock()
	if h.closing.Load() {
		return nil, newError("render", ErrClosed, nil)
	}
	if h.render != nil {
		return nil, newError("render", ErrEngineInternal, errors.New("render context is in use"))
	}
	rc, err := h.native.NewRenderContext(params)
	if err != nil {
		return nil, newError("render", ErrEngineInternal, err)
	}
	h.render = &trackedRender{RenderContext: rc, h: h}
	return h.render, nil
}

// Close stops the event pump and destroys the native engine.
// A render context left by the caller is freed first.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.closing.Store(true)
		h.resolveLoad(loadResult{err: ErrClosed}, true)
		h.native.Wakeup()
		<-h.pumpDone

		h.renderMu.Lock()
		r := h.render
		h.renderMu.Unlock()
		if r != nil {
			h.log.Warn().Msg("render context is still alive on close")
			r.Free()
		}
		h.native.Destroy()
		h.log.Debug().Msg("engine closed")
	})
	return nil
}

func (h *Handle) setState(s State, with func()) {
	h.mu.Lock()
	h.state = s
	if with != nil {
		with()
	}
	h.mu.Unlock()
}

func (h *Handle) transitionError(op string, s State) error {
	if s == Errored {
		return newError(op, ErrFaulted, nil)
	}
	return newError(op, ErrInvalidTransition, fmt.Errorf("not allowed in %v", s))
}

func (h *Handle) expectLoad() chan loadResult {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	h.load = make(chan loadResult, 1)
	h.loadStarted = false
	return h.load
}

// startLoad marks the pending load as started by the engine,
// file events before it belong to the previous media.
func (h *Handle) startLoad() {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if h.load != nil {
		h.loadStarted = true
	}
}

// loadPending returns true while an Open waits for a load the engine
// hasn't started yet.
func (h *Handle) loadPending() bool {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	return h.load != nil && !h.loadStarted
}

func (h *Handle) cancelLoad(ch chan loadResult) {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if h.load == ch {
		h.load = nil
	}
}

// resolveLoad completes a pending Open, returns false if there is none.
// Unless forced, only a load the engine has started is resolved.
func (h *Handle) resolveLoad(res loadResult, force bool) bool {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if h.load == nil || (!force && !h.loadStarted) {
		return false
	}
	h.load <- res
	h.load = nil
	return true
}

func (h *Handle) queryDuration() time.Duration {
	v, err := h.native.GetProperty("duration")
	if err != nil {
		return 0
	}
	if f, ok := toFloat(v); ok && f > 0 {
		return fromSeconds(f)
	}
	return 0
}

type trackedRender struct {
	RenderContext
	h    *Handle
	once sync.Once
}

func (r *trackedRender) Free() {
	r.once.Do(func() {
		r.RenderContext.Free()
		r.h.renderMu.Lock()
		if r.h.render == r {
			r.h.render = nil
		}
		r.h.renderMu.Unlock()
	})
}

func clamp(pos, dur time.Duration, strict bool) (time.Duration, error) {
	out := pos < 0 || (dur > 0 && pos > dur)
	if out && strict {
		return 0, fmt.Errorf("%v is out of [0, %v]", pos, dur)
	}
	if pos < 0 {
		pos = 0
	}
	if dur > 0 && pos > dur {
		pos = dur
	}
	return pos, nil
}

// checkLocal fails for local media that doesn't exist.
func checkLocal(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	var path string
	switch u.Scheme {
	case "file":
		path = u.Path
	case "":
		path = uri
	default:
		return nil
	}
	if path == "" {
		return fmt.Errorf("empty path in %q", uri)
	}
	_, err = os.Stat(path)
	return err
}

func seconds(d time.Duration) string { return strconv.FormatFloat(d.Seconds(), 'f', 3, 64) }

func fromSeconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

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
