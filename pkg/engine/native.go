package engine

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"
	"unsafe"

	"github.com/flixor/mediabridge/pkg/logger"
)

// Native is a media engine instance (the libmpv client API shape).
// Every method may be called from any goroutine,
// except WaitEvent which has a single reader.
type Native interface {
	// SetOption sets an option before Initialize.
	SetOption(name, value string) error
	Initialize() error
	// RequestLogMessages enables LogMessage events at or above level.
	RequestLogMessages(level string) error
	Command(args ...string) error
	SetProperty(name string, value any) error
	GetProperty(name string) (any, error)
	// ObserveProperty makes the engine report PropertyChange events for name.
	ObserveProperty(name string) error
	// WaitEvent blocks up to timeout for the next event,
	// a negative timeout waits forever. Returns an EventNone on timeout or Wakeup.
	WaitEvent(timeout time.Duration) RawEvent
	// Wakeup interrupts a blocked WaitEvent.
	Wakeup()
	NewRenderContext(params RenderParams) (RenderContext, error)
	// Destroy terminates the engine. No other call is allowed after.
	Destroy()
}

// RenderContext draws the engine's video frames into a target.
type RenderContext interface {
	// SetUpdateCallback sets the function the engine calls, from its own
	// thread, when a new frame should be rendered. It must not block.
	SetUpdateCallback(fn func())
	Render(t Target) error
	ReportSwap()
	Free()
}

// RenderParams describe the GPU API the render context is created for.
type RenderParams struct {
	// API is either opengl or sw.
	API string
	// GetProcAddress resolves GL functions (opengl API only).
	GetProcAddress func(name string) unsafe.Pointer
}

// Target is the drawable a frame goes to.
// For GL it's a framebuffer object, for software rendering an RGBA image.
type Target struct {
	FBO   int
	W, H  int
	FlipY bool
	Image *image.RGBA
}

type RawEventID int

const (
	EventNone RawEventID = iota
	EventShutdown
	EventLogMessage
	EventStartFile
	EventEndFile
	EventFileLoaded
	EventSeek
	EventPlaybackRestart
	EventPropertyChange
	EventVideoReconfig
	EventAudioReconfig
	EventQueueOverflow
)

func (id RawEventID) String() string {
	switch id {
	case EventNone:
		return "none"
	case EventShutdown:
		return "shutdown"
	case EventLogMessage:
		return "log-message"
	case EventStartFile:
		return "start-file"
	case EventEndFile:
		return "end-file"
	case EventFileLoaded:
		return "file-loaded"
	case EventSeek:
		return "seek"
	case EventPlaybackRestart:
		return "playback-restart"
	case EventPropertyChange:
		return "property-change"
	case EventVideoReconfig:
		return "video-reconfig"
	case EventAudioReconfig:
		return "audio-reconfig"
	case EventQueueOverflow:
		return "event-queue-overflow"
	}
	return fmt.Sprintf("event(%d)", int(id))
}

// EndReason tells why a file stopped playing.
type EndReason int

const (
	EndEOF EndReason = iota
	EndStop
	EndQuit
	EndError
	EndRedirect
)

// RawEvent is an event as reported by the native engine.
type RawEvent struct {
	ID RawEventID
	// Error is the native code attached to the event (EndFile with EndError).
	Error Code

	Name  string
	Value any

	Level  string
	Prefix string
	Text   string

	Reason EndReason
}

// Factory creates a native engine.
type Factory func(log *logger.Logger) (Native, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a native engine available by name.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("engine: nil factory for " + name)
	}
	factories[name] = f
}

// Lookup returns the registered factory for name.
func Lookup(name string) (Factory, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("no native engine %q, available: %v", name, registered())
	}
	return f, nil
}

func registered() []string {
	names := make([]string, 0, len(factories))
	for k := range factories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
