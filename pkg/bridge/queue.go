package bridge

import "sync"

type request struct {
	cmd Command
	res chan error
}

// queue is the unbounded command queue of an instance,
// so asynchronous submits never block the host.
type queue struct {
	mu     sync.Mutex
	items  []request
	closed bool
	signal chan struct{}
}

func newQueue() *queue { return &queue{signal: make(chan struct{}, 1)} }

func (q *queue) push(r request) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, r)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) take() []request {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// close refuses new requests and returns the ones not taken yet.
func (q *queue) close() []request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}
