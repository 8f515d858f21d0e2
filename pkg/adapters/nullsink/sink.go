// Package nullsink provides a frame sink that only counts deliveries.
package nullsink

import (
	"sync/atomic"

	"github.com/user/stagecast/pkg/ports"
)

// Sink discards frames and counts them.
type Sink struct {
	frames atomic.Uint64
	pixels atomic.Uint64
}

// New creates a new Sink.
func New() *Sink {
	return &Sink{}
}

// Deliver implements ports.FrameSink.
func (s *Sink) Deliver(frame ports.Frame) {
	s.frames.Add(1)
	s.pixels.Add(uint64(frame.Width * frame.Height))
}

// Frames returns the number of frames delivered.
func (s *Sink) Frames() uint64 {
	return s.frames.Load()
}

// Pixels returns the total number of pixels delivered.
func (s *Sink) Pixels() uint64 {
	return s.pixels.Load()
}

var _ ports.FrameSink = (*Sink)(nil)
