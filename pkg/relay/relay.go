// Package relay queues playback events from the engine for the host.
package relay

import (
	"slices"
	"sync"
	"time"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
)

// Handler receives relayed events.
type Handler func(event.Event)

// Dispatcher runs deliveries in the host's execution context.
type Dispatcher interface {
	Dispatch(f func())
}

// Inline delivers on the relay's own delivery goroutine.
type Inline struct{}

func (Inline) Dispatch(f func()) { f() }

type Stats struct {
	Queued    int
	Pushed    uint64
	Dropped   uint64
	Delivered uint64
}

// Relay is a bounded FIFO of events.
//
// Events are taken either with Poll or, while there are subscribers,
// by the delivery goroutine which hands them to every subscriber in order.
type Relay struct {
	log        *logger.Logger
	block      bool
	dispatcher Dispatcher

	mu     sync.Mutex
	space  *sync.Cond
	ring   []event.Event
	head   int
	n      int
	seq    uint64
	closed bool
	// released refuses new events but keeps the queue
	released bool
	stats    Stats
	subs     map[uint64]Handler
	nextID   uint64

	wake chan struct{}
	quit chan struct{}
	once sync.Once
}

func New(conf config.Relay, dispatcher Dispatcher, log *logger.Logger) *Relay {
	capacity := conf.Capacity
	if capacity < 1 {
		capacity = 1
	}
	if dispatcher == nil {
		dispatcher = Inline{}
	}
	r := &Relay{
		log:        log.Module("relay"),
		block:      conf.Policy == config.PolicyBlock,
		dispatcher: dispatcher,
		ring:       make([]event.Event, capacity),
		subs:       make(map[uint64]Handler),
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
	r.space = sync.NewCond(&r.mu)
	go r.deliver()
	return r
}

// Push stamps e with the next sequence number and queues it.
// A full relay either drops its oldest event or, with the block policy,
// waits for space. Returns false if the relay is closed or released.
func (r *Relay) Push(e event.Event) bool {
	r.mu.Lock()
	for r.block && r.n == len(r.ring) && !r.closed && !r.released {
		r.space.Wait()
	}
	if r.closed || r.released {
		r.mu.Unlock()
		return false
	}
	if r.n == len(r.ring) {
		dropped := r.ring[r.head]
		r.head = (r.head + 1) % len(r.ring)
		r.n--
		r.stats.Dropped++
		eventsDropped.Inc()
		eventsQueued.Dec()
		r.log.Debug().Msgf("queue is full, dropped %v", dropped)
	}
	r.seq++
	e.Seq = r.seq
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.ring[(r.head+r.n)%len(r.ring)] = e
	r.n++
	r.stats.Pushed++
	eventsPushed.Inc()
	eventsQueued.Inc()
	notify := len(r.subs) > 0
	r.mu.Unlock()

	if notify {
		r.signal()
	}
	return true
}

// Poll takes all queued events in production order. Never blocks.
func (r *Relay) Poll() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.take()
}

// take empties the ring, the lock must be held.
func (r *Relay) take() []event.Event {
	if r.n == 0 {
		return nil
	}
	out := make([]event.Event, r.n)
	for i := range out {
		j := (r.head + i) % len(r.ring)
		out[i] = r.ring[j]
		r.ring[j] = event.Event{}
	}
	eventsQueued.Sub(float64(r.n))
	r.head, r.n = 0, 0
	r.space.Broadcast()
	return out
}

// Subscribe adds a handler for every following event, and for the queued
// ones if there were no subscribers. The returned cancel is idempotent.
func (r *Relay) Subscribe(h Handler) (cancel func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = h
	r.mu.Unlock()
	r.signal()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Reset discards the queued events and returns how many there were.
func (r *Relay) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.n
	r.take()
	return n
}

// Release refuses every following event and frees producers blocked
// on a full queue. Queued events stay until Poll, Reset or Close.
func (r *Relay) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	r.space.Broadcast()
}

// Close discards the queued events, stops delivery and
// releases blocked producers.
func (r *Relay) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.take()
		r.subs = make(map[uint64]Handler)
		r.space.Broadcast()
		r.mu.Unlock()
		close(r.quit)
	})
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Queued = r.n
	return s
}

func (r *Relay) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) deliver() {
	for {
		select {
		case <-r.quit:
			return
		case <-r.wake:
		}
		r.mu.Lock()
		if len(r.subs) == 0 {
			r.mu.Unlock()
			continue
		}
		batch := r.take()
		handlers := make([]Handler, 0, len(r.subs))
		ids := make([]uint64, 0, len(r.subs))
		for id := range r.subs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			handlers = append(handlers, r.subs[id])
		}
		r.mu.Unlock()
		if len(batch) == 0 {
			continue
		}

		r.dispatcher.Dispatch(func() {
			for _, e := range batch {
				for _, h := range handlers {
					h(e)
				}
			}
		})
		r.mu.Lock()
		r.stats.Delivered += uint64(len(batch))
		r.mu.Unlock()
		eventsDelivered.Add(float64(len(batch)))
	}
}
