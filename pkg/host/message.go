package host

import (
	"time"

	"github.com/flixor/mediabridge/pkg/event"
)

// Request is a host command.
// Position is in nanoseconds, the same as in events.
type Request struct {
	ID       uint64        `json:"id"`
	Cmd      string        `json:"cmd"`
	URI      string        `json:"uri,omitempty"`
	Position time.Duration `json:"position,omitempty"`
	Name     string        `json:"name,omitempty"`
	Value    any           `json:"value,omitempty"`
}

// Transport-only commands, the rest go to the bridge as is.
const (
	cmdCreate   = "create"
	cmdProperty = "property"
	cmdState    = "state"
	cmdSuspend  = "suspend"
	cmdResume   = "resume"
)

// Message is anything sent to the host: a reply to a request or an event.
type Message struct {
	Type  string       `json:"type"`
	ID    uint64       `json:"id,omitempty"`
	Error string       `json:"error,omitempty"`
	Value any          `json:"value,omitempty"`
	Event *event.Event `json:"event,omitempty"`
}

const (
	typeReply = "reply"
	typeEvent = "event"
)

func reply(id uint64, value any, err error) Message {
	m := Message{Type: typeReply, ID: id, Value: value}
	if err != nil {
		m.Error = err.Error()
	}
	return m
}
