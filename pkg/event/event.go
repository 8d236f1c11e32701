// Package event defines the playback notifications a bridge relays
// from the media engine to the host.
package event

import (
	"fmt"
	"time"
)

// Kind tags the variant of an Event.
type Kind uint8

const (
	PropertyChanged Kind = iota + 1
	LogMessage
	EndOfFile
	Error
	Seek
	StateChanged
	FileLoaded
	VideoReconfig
)

var kindNames = map[Kind]string{
	PropertyChanged: "property-changed",
	LogMessage:      "log-message",
	EndOfFile:       "end-of-file",
	Error:           "error",
	Seek:            "seek",
	StateChanged:    "state-changed",
	FileLoaded:      "file-loaded",
	VideoReconfig:   "video-reconfig",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", k)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is a single playback notification.
// Only the fields of its Kind are set.
//
//	PropertyChanged: Name, Value
//	LogMessage:      Level, Prefix, Text
//	EndOfFile:       -
//	Error:           Code, Message
//	Seek:            Position
//	StateChanged:    From, To
//	FileLoaded:      URI, Duration
//	VideoReconfig:   Width, Height
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`

	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`

	Level  string `json:"level,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Text   string `json:"text,omitempty"`

	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`

	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration,omitempty"`
	URI      string        `json:"uri,omitempty"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

func NewPropertyChanged(name string, value any) Event {
	return Event{Kind: PropertyChanged, Name: name, Value: value}
}

func NewLogMessage(level, prefix, text string) Event {
	return Event{Kind: LogMessage, Level: level, Prefix: prefix, Text: text}
}

func NewEndOfFile() Event { return Event{Kind: EndOfFile} }

func NewError(code int, message string) Event {
	return Event{Kind: Error, Code: code, Message: message}
}

func NewSeek(pos time.Duration) Event { return Event{Kind: Seek, Position: pos} }

func NewStateChanged(from, to fmt.Stringer) Event {
	return Event{Kind: StateChanged, From: from.String(), To: to.String()}
}

func NewFileLoaded(uri string, d time.Duration) Event {
	return Event{Kind: FileLoaded, URI: uri, Duration: d}
}

func NewVideoReconfig(w, h int) Event { return Event{Kind: VideoReconfig, Width: w, Height: h} }

func (e Event) String() string {
	switch e.Kind {
	case PropertyChanged:
		return fmt.Sprintf("#%d %v{%s=%v}", e.Seq, e.Kind, e.Name, e.Value)
	case LogMessage:
		return fmt.Sprintf("#%d %v{%s [%s] %s}", e.Seq, e.Kind, e.Level, e.Prefix, e.Text)
	case Error:
		return fmt.Sprintf("#%d %v{%d %s}", e.Seq, e.Kind, e.Code, e.Message)
	case Seek:
		return fmt.Sprintf("#%d %v{%v}", e.Seq, e.Kind, e.Position)
	case StateChanged:
		return fmt.Sprintf("#%d %v{%s->%s}", e.Seq, e.Kind, e.From, e.To)
	case FileLoaded:
		return fmt.Sprintf("#%d %v{%s %v}", e.Seq, e.Kind, e.URI, e.Duration)
	case VideoReconfig:
		return fmt.Sprintf("#%d %v{%dx%d}", e.Seq, e.Kind, e.Width, e.Height)
	}
	return fmt.Sprintf("#%d %v", e.Seq, e.Kind)
}
