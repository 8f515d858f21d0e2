// Package h264decoder provides streaming H.264 decoding behind ports.FrameDecoder.
//   - openh264: libopenh264 loaded at runtime through purego (macOS, Linux)
//   - ffmpeg: a long-running ffmpeg process fed over stdin (all platforms)
package h264decoder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

var (
	// ErrClosed is returned when decoder methods are called after Close.
	ErrClosed = errors.New("h264decoder: decoder closed")

	// ErrDecodeFailed is returned when decoding a chunk fails.
	ErrDecodeFailed = errors.New("h264decoder: decode failed")

	// ErrFFmpegNotFound is returned when ffmpeg is not found in PATH.
	ErrFFmpegNotFound = errors.New("h264decoder: ffmpeg not found in PATH")

	// ErrOpenH264NotFound is returned when libopenh264 cannot be loaded.
	ErrOpenH264NotFound = errors.New("h264decoder: libopenh264 not found")

	// ErrPlatformNotSupported is returned when a backend does not exist on this platform.
	ErrPlatformNotSupported = errors.New("h264decoder: platform not supported")

	// ErrUnknownBackend is returned for backend names other than openh264 and ffmpeg.
	ErrUnknownBackend = errors.New("h264decoder: unknown backend")
)

// Backend names a decoding implementation.
type Backend string

const (
	BackendOpenH264 Backend = "openh264"
	BackendFFmpeg   Backend = "ffmpeg"
)

// Options configures a Decoder.
type Options struct {
	Backend Backend

	// FFmpegPath overrides the ffmpeg lookup for BackendFFmpeg.
	FFmpegPath string

	// LibraryPath overrides the libopenh264 lookup for BackendOpenH264.
	LibraryPath string
}

// backend is implemented by each decoding implementation.
type backend interface {
	decode(chunk []byte) (ports.Frame, bool, error)
	flush() ([]ports.Frame, error)
	close() error
}

// restarter is implemented by backends that can drop their stream state.
type restarter interface {
	restarted() bool
}

// Decoder decodes Annex-B H.264 chunks into RGB frames.
// It is not safe for concurrent use by multiple goroutines.
type Decoder struct {
	mu      sync.Mutex
	impl    backend
	backend Backend
}

// New creates a decoder for the track using the backend named in opts.
func New(track ports.TrackDescriptor, opts Options) (*Decoder, error) {
	var (
		impl backend
		err  error
	)
	switch opts.Backend {
	case BackendOpenH264:
		impl, err = newOpenH264(opts.LibraryPath)
	case BackendFFmpeg:
		impl, err = newFFmpeg(track, opts.FFmpegPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return &Decoder{impl: impl, backend: opts.Backend}, nil
}

// Backend returns the backend the decoder runs on.
func (d *Decoder) Backend() Backend {
	return d.backend
}

// Decode feeds one Annex-B chunk. ok is false when no picture is ready yet.
func (d *Decoder) Decode(chunk []byte) (ports.Frame, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.impl == nil {
		return ports.Frame{}, false, ErrClosed
	}
	if len(chunk) == 0 {
		return ports.Frame{}, false, nil
	}
	return d.impl.decode(chunk)
}

// Flush returns the pictures still held by the decoder.
// The decoder accepts new chunks afterwards.
func (d *Decoder) Flush() ([]ports.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.impl == nil {
		return nil, ErrClosed
	}
	return d.impl.flush()
}

// Close releases decoder resources. Closing twice is a no-op.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.impl == nil {
		return nil
	}
	err := d.impl.close()
	d.impl = nil
	return err
}

// Lagging reports whether pictures can trail the chunks that completed
// them. The ffmpeg process buffers output asynchronously.
func (d *Decoder) Lagging() bool {
	return d.backend == BackendFFmpeg
}

// Restarted reports whether the backend lost its stream state since the
// previous call.
func (d *Decoder) Restarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.impl.(restarter)
	return ok && r.restarted()
}

// IsAvailable reports whether the backend can be created on this system.
func IsAvailable(b Backend, opts Options) bool {
	switch b {
	case BackendOpenH264:
		return loadOpenH264(opts.LibraryPath) == nil
	case BackendFFmpeg:
		_, err := findFFmpeg(opts.FFmpegPath)
		return err == nil
	}
	return false
}

var (
	_ ports.FrameDecoder  = (*Decoder)(nil)
	_ ports.DecoderStatus = (*Decoder)(nil)
)
