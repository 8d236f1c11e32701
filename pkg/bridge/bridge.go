// Package bridge is the host-facing side of the media engine: it owns
// the engine instance, applies host commands in order and relays
// playback events back.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/flixor/mediabridge/pkg/relay"
	"github.com/flixor/mediabridge/pkg/surface"
	"github.com/gofrs/uuid"
)

var (
	ErrNoInstance      = errors.New("no engine instance")
	ErrInstanceErrored = errors.New("engine instance is in the errored state")
	ErrInstanceExists  = errors.New("engine instance already exists")
	ErrClosed          = errors.New("bridge is closed")
)

// Bridge holds at most one engine instance.
type Bridge struct {
	relay      config.Relay
	dispatcher relay.Dispatcher
	log        *logger.Logger

	mu     sync.Mutex
	inst   *Instance
	closed bool
}

// New makes an empty bridge. Events are delivered to subscribers
// through dispatcher, nil means the relay's own goroutine.
func New(conf config.Relay, dispatcher relay.Dispatcher, log *logger.Logger) *Bridge {
	return &Bridge{relay: conf, dispatcher: dispatcher, log: log.Module("bridge")}
}

// Create makes the engine instance.
func (b *Bridge) Create(conf config.Engine) (*Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.inst != nil {
		return nil, ErrInstanceExists
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	factory, err := engine.Lookup(conf.Native)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	log := b.log.Extend(b.log.With().Str("id", id.String()))
	native, err := factory(log)
	if err != nil {
		return nil, fmt.Errorf("%v engine: %w", conf.Native, err)
	}
	r := relay.New(b.relay, b.dispatcher, log)
	h, err := engine.New(native, conf, func(e event.Event) { r.Push(e) }, log.Module("engine"))
	if err != nil {
		r.Close()
		return nil, err
	}

	inst := &Instance{
		ID:      id,
		log:     log,
		handle:  h,
		adapter: surface.NewAdapter(h, conf.RenderBackend, log),
		relay:   r,
		queue:   newQueue(),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	inst.onClose = func() {
		b.mu.Lock()
		if b.inst == inst {
			b.inst = nil
		}
		b.mu.Unlock()
		instances.Dec()
		instanceState.Set(0)
	}
	go inst.loop()
	b.inst = inst
	instances.Inc()
	log.Info().Msgf("created %v engine instance", conf.Native)
	return inst, nil
}

// Instance returns the current instance.
func (b *Bridge) Instance() (*Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.inst == nil {
		return nil, ErrNoInstance
	}
	return b.inst, nil
}

func (b *Bridge) Submit(cmd Command) error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	return inst.Submit(cmd)
}

func (b *Bridge) SubmitAsync(cmd Command) <-chan error {
	inst, err := b.Instance()
	if err != nil {
		res := make(chan error, 1)
		res <- err
		return res
	}
	return inst.SubmitAsync(cmd)
}

func (b *Bridge) Property(name string) (any, error) {
	inst, err := b.Instance()
	if err != nil {
		return nil, err
	}
	return inst.Property(name)
}

func (b *Bridge) Bind(s surface.Surface) error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	return inst.Bind(s)
}

func (b *Bridge) Unbind() error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	return inst.Unbind()
}

func (b *Bridge) Resize(w, h int) error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	inst.Resize(w, h)
	return nil
}

func (b *Bridge) RequestRender() error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	inst.RequestRender()
	return nil
}

func (b *Bridge) Poll() ([]event.Event, error) {
	inst, err := b.Instance()
	if err != nil {
		return nil, err
	}
	return inst.Poll(), nil
}

func (b *Bridge) Subscribe(h relay.Handler) (cancel func(), err error) {
	inst, err := b.Instance()
	if err != nil {
		return nil, err
	}
	return inst.Subscribe(h), nil
}

func (b *Bridge) Suspend() error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	return inst.Suspend()
}

func (b *Bridge) Resume() error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	return inst.Resume()
}

// Teardown releases the current instance, a new one can be created after.
func (b *Bridge) Teardown() error {
	inst, err := b.Instance()
	if err != nil {
		return err
	}
	return inst.Teardown()
}

// Close tears the instance down and refuses new ones.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	inst := b.inst
	b.mu.Unlock()
	if inst == nil {
		return nil
	}
	return inst.Teardown()
}
