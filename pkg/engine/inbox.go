package engine

import "sync"

type noticeKind int

const (
	noticeEOF noticeKind = iota
	noticeFault
)

type notice struct {
	kind noticeKind
	err  error
}

// inbox hands notifications from the event pump to the engine context.
// put never blocks, so the pump can't stall on a busy engine context.
type inbox struct {
	mu     sync.Mutex
	items  []notice
	signal chan struct{}
}

func newInbox() *inbox { return &inbox{signal: make(chan struct{}, 1)} }

func (b *inbox) put(n notice) {
	b.mu.Lock()
	b.items = append(b.items, n)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *inbox) take() []notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}
