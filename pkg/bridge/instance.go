package bridge

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flixor/mediabridge/pkg/engine"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/flixor/mediabridge/pkg/relay"
	"github.com/flixor/mediabridge/pkg/surface"
	"github.com/gofrs/uuid"
)

// Instance is an engine instance with its surface adapter and event relay.
//
// Commands are applied one by one on the instance loop goroutine
// (the engine context), in the order they were submitted.
type Instance struct {
	ID uuid.UUID

	log     *logger.Logger
	handle  *engine.Handle
	adapter *surface.Adapter
	relay   *relay.Relay

	queue *queue
	quit  chan struct{}
	done  chan struct{}

	// engine context only
	resume bool

	closed  atomic.Bool
	once    sync.Once
	onClose func()
}

func (i *Instance) loop() {
	defer close(i.done)
	for {
		select {
		case <-i.quit:
			return
		case <-i.handle.Pending():
			i.handle.ApplyPending()
			instanceState.Set(float64(i.handle.State()))
		case <-i.queue.signal:
			for _, req := range i.queue.take() {
				req.res <- i.apply(req.cmd)
			}
		}
	}
}

func (i *Instance) apply(cmd Command) (err error) {
	// notifications go first so a command sees the latest state
	i.handle.ApplyPending()
	defer func() {
		commandsTotal.WithLabelValues(cmd.Kind(), result(err)).Inc()
		instanceState.Set(float64(i.handle.State()))
		if err != nil {
			i.log.Debug().Err(err).Msgf("command %v failed", cmd.Kind())
		}
	}()

	if c, ok := cmd.(call); ok {
		return c.fn()
	}
	if i.handle.State() == engine.Errored {
		return ErrInstanceErrored
	}
	switch c := cmd.(type) {
	case Open:
		return i.handle.Open(c.URI)
	case Play:
		i.resume = false
		return i.handle.Play()
	case Pause:
		i.resume = false
		return i.handle.Pause()
	case Seek:
		return i.handle.Seek(c.Position)
	case SetProperty:
		return i.handle.SetProperty(c.Name, c.Value)
	case Stop:
		i.resume = false
		return i.handle.Stop()
	}
	return fmt.Errorf("unsupported command %v", cmd.Kind())
}

// Submit applies cmd and waits for its result.
func (i *Instance) Submit(cmd Command) error {
	if _, ok := cmd.(Teardown); ok {
		return i.Teardown()
	}
	return <-i.SubmitAsync(cmd)
}

// SubmitAsync queues cmd and returns at once, the result comes
// on the returned channel.
func (i *Instance) SubmitAsync(cmd Command) <-chan error {
	res := make(chan error, 1)
	if cmd == nil {
		res <- errors.New("nil command")
		return res
	}
	if _, ok := cmd.(Teardown); ok {
		go func() { res <- i.Teardown() }()
		return res
	}
	if !i.queue.push(request{cmd: cmd, res: res}) {
		res <- ErrClosed
	}
	return res
}

func (i *Instance) call(name string, fn func() error) error {
	return <-i.SubmitAsync(call{name: name, fn: fn})
}

// Property reads an engine property on the engine context.
func (i *Instance) Property(name string) (value any, err error) {
	err = i.call("property", func() error {
		value, err = i.handle.Property(name)
		return err
	})
	return value, err
}

func (i *Instance) State() engine.State { return i.handle.State() }

func (i *Instance) Snapshot() engine.Snapshot { return i.handle.Snapshot() }

func (i *Instance) Bind(s surface.Surface) error {
	if i.closed.Load() {
		return ErrClosed
	}
	if i.handle.State() == engine.Errored {
		return ErrInstanceErrored
	}
	return i.adapter.Bind(s)
}

func (i *Instance) Unbind() error { return i.adapter.Unbind() }

func (i *Instance) Resize(w, h int) { i.adapter.OnResize(w, h) }

func (i *Instance) RequestRender() { i.adapter.RequestRender() }

func (i *Instance) Poll() []event.Event { return i.relay.Poll() }

func (i *Instance) Subscribe(h relay.Handler) (cancel func()) { return i.relay.Subscribe(h) }

// Suspend pauses playback when the host goes to the background,
// Resume plays again if Suspend paused it.
func (i *Instance) Suspend() error {
	return i.call("suspend", func() error {
		if i.handle.State() != engine.Playing {
			return nil
		}
		if err := i.handle.Pause(); err != nil {
			return err
		}
		i.resume = true
		i.log.Debug().Msg("suspended")
		return nil
	})
}

func (i *Instance) Resume() error {
	return i.call("resume", func() error {
		if !i.resume {
			return nil
		}
		i.resume = false
		if i.handle.State() != engine.Paused {
			return nil
		}
		i.log.Debug().Msg("resumed")
		return i.handle.Play()
	})
}

// Teardown stops playback, unbinds the surface, releases the engine
// and discards the queued events, the events of teardown itself included.
// Every step runs even if a previous one fails, the errors are joined.
// Repeated calls do nothing.
func (i *Instance) Teardown() error {
	var err error
	i.once.Do(func() {
		i.closed.Store(true)
		var errs []error

		// producers blocked on a full relay would hold the engine context
		i.relay.Release()

		if e := i.call("teardown-stop", func() error {
			if i.handle.State() == engine.Errored {
				return nil
			}
			return i.handle.Stop()
		}); e != nil {
			errs = append(errs, fmt.Errorf("stop: %w", e))
		}

		if e := i.adapter.Unbind(); e != nil && !errors.Is(e, surface.ErrNotBound) {
			errs = append(errs, fmt.Errorf("unbind: %w", e))
		}

		for _, req := range i.queue.close() {
			req.res <- ErrClosed
		}
		close(i.quit)
		<-i.done
		if e := i.handle.Close(); e != nil {
			errs = append(errs, fmt.Errorf("release: %w", e))
		}

		if n := i.relay.Reset(); n > 0 {
			i.log.Debug().Msgf("discarded %v events", n)
		}
		i.relay.Close()

		if i.onClose != nil {
			i.onClose()
		}
		err = errors.Join(errs...)
		if err != nil {
			i.log.Warn().Err(err).Msg("teardown")
		} else {
			i.log.Info().Msg("instance is released")
		}
	})
	return err
}
