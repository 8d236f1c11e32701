package thread

import (
	"runtime"
	"sync"
)

type fun struct {
	fn   func()
	done chan struct{}
}

var dPool = sync.Pool{New: func() any { return make(chan struct{}, 1) }}

// Worker executes functions one by one on a goroutine
// locked to its own OS thread (GL contexts are bound to threads).
type Worker struct {
	fq   chan fun
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func NewWorker() *Worker {
	w := &Worker{
		fq:   make(chan fun),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)
	for {
		select {
		case f := <-w.fq:
			f.fn()
			f.done <- struct{}{}
		case <-w.quit:
			return
		}
	}
}

// Call queues function f on the worker thread and blocks until f finishes.
// Returns false if the worker is stopped and f was not called.
func (w *Worker) Call(f func()) bool {
	done := dPool.Get().(chan struct{})
	defer dPool.Put(done)
	select {
	case w.fq <- fun{fn: f, done: done}:
	case <-w.quit:
		return false
	}
	<-done
	return true
}

// Stop waits for the current function to finish and stops the worker.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.quit) })
	<-w.done
}
