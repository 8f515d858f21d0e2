package mocks

import (
	"fmt"
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

// ContainerReader is a mock implementation of ports.ContainerReader.
type ContainerReader struct {
	mu sync.RWMutex

	containers map[string]*Container
	opened     []string

	OpenFunc func(path string) (ports.Container, error)
}

// NewContainerReader creates a mock ContainerReader with no files.
func NewContainerReader() *ContainerReader {
	return &ContainerReader{containers: make(map[string]*Container)}
}

// Add registers a container returned by Open(path).
func (m *ContainerReader) Add(path string, c *Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[path] = c
}

func (m *ContainerReader) Open(path string) (ports.Container, error) {
	m.mu.Lock()
	m.opened = append(m.opened, path)
	fn := m.OpenFunc
	c, ok := m.containers[path]
	m.mu.Unlock()

	if fn != nil {
		return fn(path)
	}
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return c, nil
}

// Opened returns the paths passed to Open.
func (m *ContainerReader) Opened() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.opened...)
}

var _ ports.ContainerReader = (*ContainerReader)(nil)

// Container is a mock implementation of ports.Container backed by
// in-memory samples. Samples[i] is sample index i+1.
type Container struct {
	mu sync.RWMutex

	Track    ports.TrackDescriptor
	HasTrack bool
	Samples  [][]byte

	// SampleErrors makes ReadSample fail for the given indices.
	SampleErrors map[uint32]error

	ReadSampleFunc func(trackID, index uint32) (ports.Sample, bool, error)

	reads  []uint32
	closed int
}

// NewContainer creates a mock H.264 container with the given samples.
func NewContainer(fps float64, samples ...[]byte) *Container {
	return &Container{
		Track: ports.TrackDescriptor{
			TrackID:     1,
			Width:       4,
			Height:      4,
			FrameRate:   fps,
			SampleCount: uint32(len(samples)),
			Config: ports.CodecConfig{
				SampleEntry: "avc1",
				LengthSize:  4,
				SPS:         [][]byte{{0x67, 0x42, 0xc0, 0x1e}},
				PPS:         [][]byte{{0x68, 0xce, 0x3c, 0x80}},
			},
		},
		HasTrack: true,
		Samples:  samples,
	}
}

func (m *Container) FindH264Track() (ports.TrackDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Track, m.HasTrack
}

func (m *Container) ReadSample(trackID, index uint32) (ports.Sample, bool, error) {
	m.mu.Lock()
	m.reads = append(m.reads, index)
	fn := m.ReadSampleFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(trackID, index)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.SampleErrors[index]; ok {
		return ports.Sample{}, false, err
	}
	if index == 0 || int(index) > len(m.Samples) {
		return ports.Sample{}, false, nil
	}
	return ports.Sample{Index: index, Data: m.Samples[index-1], Sync: index == 1}, true, nil
}

func (m *Container) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Reads returns the sample indices requested so far.
func (m *Container) Reads() []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint32(nil), m.reads...)
}

// CloseCount returns how many times Close was called.
func (m *Container) CloseCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

var _ ports.Container = (*Container)(nil)
