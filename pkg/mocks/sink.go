package mocks

import (
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

// FrameSink is a mock implementation of ports.FrameSink that records frames.
type FrameSink struct {
	mu     sync.RWMutex
	frames []ports.Frame

	DeliverFunc func(frame ports.Frame)
}

func (m *FrameSink) Deliver(frame ports.Frame) {
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	fn := m.DeliverFunc
	m.mu.Unlock()

	if fn != nil {
		fn(frame)
	}
}

// Frames returns the delivered frames in order.
func (m *FrameSink) Frames() []ports.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ports.Frame(nil), m.frames...)
}

// Count returns the number of delivered frames.
func (m *FrameSink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

var _ ports.FrameSink = (*FrameSink)(nil)

// Dispatcher is a mock implementation of ports.Dispatcher.
// By default it runs fn synchronously on the caller's goroutine.
type Dispatcher struct {
	mu    sync.RWMutex
	calls int

	InvokeFunc func(fn func()) error
}

func (m *Dispatcher) Invoke(fn func()) error {
	m.mu.Lock()
	m.calls++
	invoke := m.InvokeFunc
	m.mu.Unlock()

	if invoke != nil {
		return invoke(fn)
	}
	fn()
	return nil
}

// Calls returns how many times Invoke was called.
func (m *Dispatcher) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

var _ ports.Dispatcher = (*Dispatcher)(nil)
