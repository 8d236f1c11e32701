package relay

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flixor/mediabridge/pkg/config"
	"github.com/flixor/mediabridge/pkg/event"
	"github.com/flixor/mediabridge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T, capacity int, policy string) *Relay {
	t.Helper()
	r := New(config.Relay{Capacity: capacity, Policy: policy}, nil, logger.Nop())
	t.Cleanup(r.Close)
	return r
}

func seqs(events []event.Event) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Seq)
	}
	return out
}

type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) handle(e event.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) seqs() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seqs(c.events)
}

func TestPollOrder(t *testing.T) {
	r := newRelay(t, 8, config.PolicyDropOldest)
	assert.Nil(t, r.Poll())

	require.True(t, r.Push(event.NewPropertyChanged("pause", false)))
	require.True(t, r.Push(event.NewSeek(time.Second)))
	require.True(t, r.Push(event.NewEndOfFile()))

	events := r.Poll()
	assert.Equal(t, []uint64{1, 2, 3}, seqs(events))
	assert.Equal(t, event.PropertyChanged, events[0].Kind)
	assert.Equal(t, event.Seek, events[1].Kind)
	assert.Equal(t, event.EndOfFile, events[2].Kind)
	assert.False(t, events[0].Time.IsZero())
	assert.Nil(t, r.Poll())

	r.Push(event.NewEndOfFile())
	assert.Equal(t, []uint64{4}, seqs(r.Poll()))
}

func TestDropOldest(t *testing.T) {
	r := newRelay(t, 2, config.PolicyDropOldest)
	for i := 0; i < 5; i++ {
		require.True(t, r.Push(event.NewEndOfFile()))
	}
	stats := r.Stats()
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, uint64(3), stats.Dropped)
	assert.Equal(t, uint64(5), stats.Pushed)
	assert.Equal(t, []uint64{4, 5}, seqs(r.Poll()))
}

func TestBlockPolicy(t *testing.T) {
	r := newRelay(t, 1, config.PolicyBlock)
	require.True(t, r.Push(event.NewEndOfFile()))

	pushed := make(chan bool, 1)
	go func() { pushed <- r.Push(event.NewSeek(0)) }()
	select {
	case <-pushed:
		t.Fatal("push into a full queue didn't block")
	case <-time.After(30 * time.Millisecond):
	}

	assert.Equal(t, []uint64{1}, seqs(r.Poll()))
	assert.True(t, <-pushed)
	assert.Equal(t, []uint64{2}, seqs(r.Poll()))
	assert.Zero(t, r.Stats().Dropped)
}

func TestCloseReleasesProducers(t *testing.T) {
	r := newRelay(t, 1, config.PolicyBlock)
	require.True(t, r.Push(event.NewEndOfFile()))

	pushed := make(chan bool, 1)
	go func() { pushed <- r.Push(event.NewEndOfFile()) }()
	time.Sleep(10 * time.Millisecond)
	r.Close()
	assert.False(t, <-pushed)
	assert.Nil(t, r.Poll())
	assert.False(t, r.Push(event.NewEndOfFile()))
}

func TestReleaseKeepsQueue(t *testing.T) {
	r := newRelay(t, 1, config.PolicyBlock)
	require.True(t, r.Push(event.NewEndOfFile()))

	pushed := make(chan bool, 1)
	go func() { pushed <- r.Push(event.NewSeek(time.Second)) }()
	time.Sleep(10 * time.Millisecond)
	r.Release()
	select {
	case ok := <-pushed:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("blocked producer wasn't released")
	}
	assert.False(t, r.Push(event.NewEndOfFile()))
	assert.Equal(t, 1, r.Stats().Queued)
	assert.Equal(t, 1, r.Reset())
}

func TestSubscribe(t *testing.T) {
	r := newRelay(t, 16, config.PolicyDropOldest)
	r.Push(event.NewEndOfFile())

	var a, b collector
	cancelA := r.Subscribe(a.handle)
	assert.Eventually(t, func() bool { return len(a.seqs()) == 1 }, time.Second, time.Millisecond, "backlog")
	cancelB := r.Subscribe(b.handle)
	defer cancelB()

	for i := 0; i < 3; i++ {
		r.Push(event.NewSeek(time.Duration(i) * time.Second))
	}
	assert.Eventually(t, func() bool { return len(b.seqs()) == 3 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return len(a.seqs()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint64{1, 2, 3, 4}, a.seqs())
	assert.Equal(t, []uint64{2, 3, 4}, b.seqs())

	cancelA()
	cancelA()
	r.Push(event.NewEndOfFile())
	assert.Eventually(t, func() bool { return len(b.seqs()) == 4 }, time.Second, time.Millisecond)
	assert.Len(t, a.seqs(), 4)
	assert.Eventually(t, func() bool { return r.Stats().Delivered == 5 }, time.Second, time.Millisecond)
	assert.Nil(t, r.Poll())
}

type countingDispatcher struct{ calls atomic.Int32 }

func (d *countingDispatcher) Dispatch(f func()) {
	d.calls.Add(1)
	f()
}

func TestDispatcher(t *testing.T) {
	d := &countingDispatcher{}
	r := New(config.Relay{Capacity: 4, Policy: config.PolicyDropOldest}, d, logger.Nop())
	defer r.Close()

	var c collector
	defer r.Subscribe(c.handle)()
	r.Push(event.NewEndOfFile())
	assert.Eventually(t, func() bool { return len(c.seqs()) == 1 }, time.Second, time.Millisecond)
	assert.Positive(t, d.calls.Load())
}

func TestReset(t *testing.T) {
	r := newRelay(t, 4, config.PolicyDropOldest)
	r.Push(event.NewEndOfFile())
	r.Push(event.NewEndOfFile())
	assert.Equal(t, 2, r.Reset())
	assert.Nil(t, r.Poll())
	assert.Zero(t, r.Reset())

	r.Push(event.NewEndOfFile())
	assert.Equal(t, []uint64{3}, seqs(r.Poll()), "sequence goes on after reset")
}
