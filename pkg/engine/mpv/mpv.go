//go:build mpv

package mpv

/*
#cgo pkg-config: mpv
#include <stdint.h>
#include <stdlib.h>
#include <mpv/client.h>

char *bridge_node_string(mpv_node *n);
int bridge_node_flag(mpv_node *n);
int64_t bridge_node_int(mpv_node *n);
double bridge_node_double(mpv_node *n);
mpv_node_list *bridge_node_list(mpv_node *n);
mpv_node *bridge_list_value(mpv_node_list *l, int i);
char *bridge_list_key(mpv_node_list *l, int i);
*/
import "C"

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/logger"
)

func init() {
	engine.Register("mpv", func(log *logger.Logger) (engine.Native, error) { return New(log) })
}

// Client is a libmpv client handle.
type Client struct {
	h    *C.mpv_handle
	log  *logger.Logger
	once sync.Once
}

func New(log *logger.Logger) (*Client, error) {
	h := C.mpv_create()
	if h == nil {
		return nil, errors.New("mpv: couldn't create a client")
	}
	c := &Client{h: h, log: log.Module("mpv")}
	c.log.Debug().Msgf("libmpv api %#x", uint64(C.mpv_client_api_version()))
	return c, nil
}

func check(rc C.int) error {
	if rc < 0 {
		return engine.Code(rc)
	}
	return nil
}

func (c *Client) SetOption(name, value string) error {
	n, v := C.CString(name), C.CString(value)
	defer C.free(unsafe.Pointer(n))
	defer C.free(unsafe.Pointer(v))
	return check(C.mpv_set_option_string(c.h, n, v))
}

func (c *Client) Initialize() error { return check(C.mpv_initialize(c.h)) }

func (c *Client) RequestLogMessages(level string) error {
	l := C.CString(level)
	defer C.free(unsafe.Pointer(l))
	return check(C.mpv_request_log_messages(c.h, l))
}

func (c *Client) Command(args ...string) error {
	argv := C.malloc(C.size_t(len(args)+1) * C.size_t(unsafe.Sizeof(uintptr(0))))
	defer C.free(argv)
	ptrs := unsafe.Slice((**C.char)(argv), len(args)+1)
	for i, a := range args {
		ptrs[i] = C.CString(a)
	}
	ptrs[len(args)] = nil
	defer func() {
		for _, p := range ptrs[:len(args)] {
			C.free(unsafe.Pointer(p))
		}
	}()
	return check(C.mpv_command(c.h, (**C.char)(argv)))
}

func (c *Client) SetProperty(name string, value any) error {
	n := C.CString(name)
	defer C.free(unsafe.Pointer(n))
	switch v := value.(type) {
	case bool:
		flag := C.int(0)
		if v {
			flag = 1
		}
		return check(C.mpv_set_property(c.h, n, C.MPV_FORMAT_FLAG, unsafe.Pointer(&flag)))
	case int:
		i := C.int64_t(v)
		return check(C.mpv_set_property(c.h, n, C.MPV_FORMAT_INT64, unsafe.Pointer(&i)))
	case int64:
		i := C.int64_t(v)
		return check(C.mpv_set_property(c.h, n, C.MPV_FORMAT_INT64, unsafe.Pointer(&i)))
	case float64:
		d := C.double(v)
		return check(C.mpv_set_property(c.h, n, C.MPV_FORMAT_DOUBLE, unsafe.Pointer(&d)))
	case float32:
		d := C.double(v)
		return check(C.mpv_set_property(c.h, n, C.MPV_FORMAT_DOUBLE, unsafe.Pointer(&d)))
	case string:
		s := C.CString(v)
		defer C.free(unsafe.Pointer(s))
		return check(C.mpv_set_property_string(c.h, n, s))
	}
	return engine.CodePropertyFormat
}

func (c *Client) GetProperty(name string) (any, error) {
	n := C.CString(name)
	defer C.free(unsafe.Pointer(n))
	var node C.mpv_node
	if err := check(C.mpv_get_property(c.h, n, C.MPV_FORMAT_NODE, unsafe.Pointer(&node))); err != nil {
		return nil, err
	}
	defer C.mpv_free_node_contents(&node)
	return fromNode(&node), nil
}

func (c *Client) ObserveProperty(name string) error {
	n := C.CString(name)
	defer C.free(unsafe.Pointer(n))
	return check(C.mpv_observe_property(c.h, 0, n, C.MPV_FORMAT_NODE))
}

func (c *Client) WaitEvent(timeout time.Duration) engine.RawEvent {
	t := C.double(-1)
	if timeout >= 0 {
		t = C.double(timeout.Seconds())
	}
	ev := C.mpv_wait_event(c.h, t)
	return convert(ev)
}

func (c *Client) Wakeup() { C.mpv_wakeup(c.h) }

func (c *Client) Destroy() {
	c.once.Do(func() {
		C.mpv_terminate_destroy(c.h)
		c.h = nil
	})
}

var events = map[C.mpv_event_id]engine.RawEventID{
	C.MPV_EVENT_NONE:             engine.EventNone,
	C.MPV_EVENT_SHUTDOWN:         engine.EventShutdown,
	C.MPV_EVENT_LOG_MESSAGE:      engine.EventLogMessage,
	C.MPV_EVENT_START_FILE:       engine.EventStartFile,
	C.MPV_EVENT_END_FILE:         engine.EventEndFile,
	C.MPV_EVENT_FILE_LOADED:      engine.EventFileLoaded,
	C.MPV_EVENT_SEEK:             engine.EventSeek,
	C.MPV_EVENT_PLAYBACK_RESTART: engine.EventPlaybackRestart,
	C.MPV_EVENT_PROPERTY_CHANGE:  engine.EventPropertyChange,
	C.MPV_EVENT_VIDEO_RECONFIG:   engine.EventVideoReconfig,
	C.MPV_EVENT_AUDIO_RECONFIG:   engine.EventAudioReconfig,
	C.MPV_EVENT_QUEUE_OVERFLOW:   engine.EventQueueOverflow,
}

var reasons = map[C.int]engine.EndReason{
	C.MPV_END_FILE_REASON_EOF:      engine.EndEOF,
	C.MPV_END_FILE_REASON_STOP:     engine.EndStop,
	C.MPV_END_FILE_REASON_QUIT:     engine.EndQuit,
	C.MPV_END_FILE_REASON_ERROR:    engine.EndError,
	C.MPV_END_FILE_REASON_REDIRECT: engine.EndRedirect,
}

// convert copies an mpv event, it's only valid until the next wait.
func convert(ev *C.mpv_event) engine.RawEvent {
	id, ok := events[ev.event_id]
	if !ok {
		// events the bridge has no use for
		return engine.RawEvent{ID: engine.EventNone}
	}
	out := engine.RawEvent{ID: id, Error: engine.Code(ev.error)}
	switch id {
	case engine.EventLogMessage:
		msg := (*C.mpv_event_log_message)(ev.data)
		out.Level = C.GoString(msg.level)
		out.Prefix = C.GoString(msg.prefix)
		out.Text = strings.TrimRight(C.GoString(msg.text), "\n")
	case engine.EventEndFile:
		end := (*C.mpv_event_end_file)(ev.data)
		out.Reason = reasons[C.int(end.reason)]
		out.Error = engine.Code(end.error)
	case engine.EventPropertyChange:
		prop := (*C.mpv_event_property)(ev.data)
		out.Name = C.GoString(prop.name)
		if prop.format == C.MPV_FORMAT_NODE {
			out.Value = fromNode((*C.mpv_node)(prop.data))
		}
	}
	return out
}

func fromNode(n *C.mpv_node) any {
	switch n.format {
	case C.MPV_FORMAT_STRING, C.MPV_FORMAT_OSD_STRING:
		return C.GoString(C.bridge_node_string(n))
	case C.MPV_FORMAT_FLAG:
		return C.bridge_node_flag(n) != 0
	case C.MPV_FORMAT_INT64:
		return int64(C.bridge_node_int(n))
	case C.MPV_FORMAT_DOUBLE:
		return float64(C.bridge_node_double(n))
	case C.MPV_FORMAT_NODE_ARRAY:
		l := C.bridge_node_list(n)
		out := make([]any, int(l.num))
		for i := range out {
			out[i] = fromNode(C.bridge_list_value(l, C.int(i)))
		}
		return out
	case C.MPV_FORMAT_NODE_MAP:
		l := C.bridge_node_list(n)
		out := make(map[string]any, int(l.num))
		for i := 0; i < int(l.num); i++ {
			out[C.GoString(C.bridge_list_key(l, C.int(i)))] = fromNode(C.bridge_list_value(l, C.int(i)))
		}
		return out
	}
	return nil
}
