// Package eventloop provides the display context: a single goroutine that
// runs marshalled work in submission order.
//
// Invoke never blocks the caller. When the queue is full the work is
// dropped and counted, so a slow display cannot stall decoding.
package eventloop

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by Invoke after Close.
	ErrClosed = errors.New("eventloop: closed")

	// ErrQueueFull is returned by Invoke when the queue has no free slot.
	ErrQueueFull = errors.New("eventloop: queue full")
)

// DefaultQueueSize is used when New is given a non-positive size.
const DefaultQueueSize = 8

// Stats is a snapshot of the loop counters.
type Stats struct {
	Queued   uint64
	Executed uint64
	Dropped  uint64
}

// Loop runs submitted functions on one goroutine.
type Loop struct {
	queue chan func()
	quit  chan struct{}
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool
	once    sync.Once

	queued   atomic.Uint64
	executed atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a loop with a bounded queue. Call Start to begin running work.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start() {
	go l.Run()
}

// Run executes queued work on the calling goroutine until Close.
// Work still queued at Close is discarded. Only the first call runs; later
// calls, and calls after Close, return immediately.
func (l *Loop) Run() {
	l.mu.Lock()
	if l.closed || l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			fn()
			l.executed.Add(1)
		case <-l.quit:
			return
		}
	}
}

// Invoke schedules fn on the loop goroutine.
func (l *Loop) Invoke(fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	select {
	case l.queue <- fn:
		l.queued.Add(1)
		return nil
	default:
		l.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops the loop and waits for the running function to return.
// It must not be called from the loop goroutine. Closing twice, or closing
// a loop that never ran, is fine.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		started := l.started
		l.mu.Unlock()
		close(l.quit)
		if !started {
			close(l.done)
		}
	})
	<-l.done
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Queued:   l.queued.Load(),
		Executed: l.executed.Load(),
		Dropped:  l.dropped.Load(),
	}
}
