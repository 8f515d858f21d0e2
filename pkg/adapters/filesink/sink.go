// Package filesink saves delivered frames as PNG files for debugging.
package filesink

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

// Sink writes every Nth delivered frame to a directory.
type Sink struct {
	dir      string
	prefix   string
	every    int
	fs       ports.FileSystem
	renderer ports.Renderer
	logger   ports.Logger

	mu        sync.Mutex
	delivered int
	saved     int
}

// New creates a Sink saving every Nth frame as <dir>/<prefix>-NNNNNN.png.
// every < 1 is treated as 1.
func New(dir, prefix string, every int, fs ports.FileSystem, renderer ports.Renderer, logger ports.Logger) *Sink {
	if every < 1 {
		every = 1
	}
	return &Sink{
		dir:      dir,
		prefix:   prefix,
		every:    every,
		fs:       fs,
		renderer: renderer,
		logger:   logger.WithComponent("filesink"),
	}
}

// Deliver implements ports.FrameSink.
func (s *Sink) Deliver(frame ports.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivered++
	if (s.delivered-1)%s.every != 0 {
		return
	}

	if err := s.save(s.delivered, frame); err != nil {
		s.logger.Warn("Failed to save frame %d: %v", s.delivered, err)
		return
	}
	s.saved++
}

func (s *Sink) save(index int, frame ports.Frame) error {
	if frame.Empty() {
		return fmt.Errorf("empty frame")
	}
	data, err := s.renderer.EncodeImage(frame.Image(), ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := s.fs.MkdirAll(s.dir); err != nil {
		return err
	}
	return s.fs.WriteFile(s.Path(index), data)
}

// Path returns the file written for the given 1-based delivery index.
func (s *Sink) Path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%06d.png", s.prefix, index))
}

// Saved returns the number of frames written.
func (s *Sink) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

var _ ports.FrameSink = (*Sink)(nil)
