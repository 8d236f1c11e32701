package bridge

import (
	"fmt"
	"time"
)

// Command is a host request applied to the engine instance.
// It is one of Open, Play, Pause, Seek, SetProperty, Stop or Teardown.
type Command interface {
	Kind() string
	command()
}

type (
	Open        struct{ URI string }
	Play        struct{}
	Pause       struct{}
	Seek        struct{ Position time.Duration }
	SetProperty struct {
		Name  string
		Value any
	}
	Stop     struct{}
	Teardown struct{}
)

func (Open) Kind() string        { return "open" }
func (Play) Kind() string        { return "play" }
func (Pause) Kind() string       { return "pause" }
func (Seek) Kind() string        { return "seek" }
func (SetProperty) Kind() string { return "set-property" }
func (Stop) Kind() string        { return "stop" }
func (Teardown) Kind() string    { return "teardown" }

func (Open) command()        {}
func (Play) command()        {}
func (Pause) command()       {}
func (Seek) command()        {}
func (SetProperty) command() {}
func (Stop) command()        {}
func (Teardown) command()    {}

func (c Open) String() string        { return fmt.Sprintf("open %v", c.URI) }
func (c Seek) String() string        { return fmt.Sprintf("seek %v", c.Position) }
func (c SetProperty) String() string { return fmt.Sprintf("set %v=%v", c.Name, c.Value) }

// call runs fn on the engine context, it's how the bridge itself
// uses the instance.
type call struct {
	name string
	fn   func() error
}

func (c call) Kind() string { return c.name }
func (call) command()       {}

// ParseCommand makes a command from its kind and arguments,
// the way the host transport sends them.
func ParseCommand(kind, uri string, position time.Duration, name string, value any) (Command, error) {
	switch kind {
	case "open":
		if uri == "" {
			return nil, fmt.Errorf("open: no uri")
		}
		return Open{URI: uri}, nil
	case "play":
		return Play{}, nil
	case "pause":
		return Pause{}, nil
	case "seek":
		return Seek{Position: position}, nil
	case "set-property":
		if name == "" {
			return nil, fmt.Errorf("set-property: no name")
		}
		return SetProperty{Name: name, Value: value}, nil
	case "stop":
		return Stop{}, nil
	case "teardown":
		return Teardown{}, nil
	}
	return nil, fmt.Errorf("unknown command %q", kind)
}
