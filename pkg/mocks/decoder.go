package mocks

import (
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

// FrameDecoder is a mock implementation of ports.FrameDecoder.
// By default every non-empty chunk yields a Width x Height frame whose
// first byte is the number of frames produced so far.
type FrameDecoder struct {
	mu sync.RWMutex

	Width  int
	Height int

	DecodeFunc func(chunk []byte) (ports.Frame, bool, error)
	FlushFunc  func() ([]ports.Frame, error)
	CloseFunc  func() error

	// LaggingOutput and RestartedFunc back ports.DecoderStatus.
	LaggingOutput bool
	RestartedFunc func() bool

	chunks  [][]byte
	flushes int
	closed  int
	emitted int
}

// NewFrameDecoder creates a mock decoder producing 4x4 frames.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{Width: 4, Height: 4}
}

func (m *FrameDecoder) Decode(chunk []byte) (ports.Frame, bool, error) {
	m.mu.Lock()
	m.chunks = append(m.chunks, append([]byte(nil), chunk...))
	fn := m.DecodeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(chunk)
	}
	if len(chunk) == 0 {
		return ports.Frame{}, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted++
	f := ports.NewFrame(m.Width, m.Height)
	f.Pix[0] = byte(m.emitted)
	return f, true, nil
}

func (m *FrameDecoder) Flush() ([]ports.Frame, error) {
	m.mu.Lock()
	m.flushes++
	fn := m.FlushFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil, nil
}

func (m *FrameDecoder) Close() error {
	m.mu.Lock()
	m.closed++
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

func (m *FrameDecoder) Lagging() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LaggingOutput
}

func (m *FrameDecoder) Restarted() bool {
	m.mu.RLock()
	fn := m.RestartedFunc
	m.mu.RUnlock()

	if fn != nil {
		return fn()
	}
	return false
}

// Chunks returns copies of every chunk passed to Decode.
func (m *FrameDecoder) Chunks() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]byte(nil), m.chunks...)
}

// FlushCount returns how many times Flush was called.
func (m *FrameDecoder) FlushCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// CloseCount returns how many times Close was called.
func (m *FrameDecoder) CloseCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Factory returns a DecoderFactory that always hands out m.
func (m *FrameDecoder) Factory() ports.DecoderFactory {
	return func(ports.TrackDescriptor) (ports.FrameDecoder, error) {
		return m, nil
	}
}

var (
	_ ports.FrameDecoder  = (*FrameDecoder)(nil)
	_ ports.DecoderStatus = (*FrameDecoder)(nil)
)
