// Package smartdecoder picks an H.264 decoding backend for a track and
// exposes it as a ports.DecoderFactory.
package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/user/stagecast/pkg/adapters/codecdetect"
	"github.com/user/stagecast/pkg/adapters/h264decoder"
	"github.com/user/stagecast/pkg/ports"
)

// Codec represents the video codec type (re-exported from codecdetect).
type Codec = codecdetect.Codec

// Backend represents the decoding backend used.
type Backend = h264decoder.Backend

const (
	// BackendAuto tries openh264 first, then ffmpeg.
	BackendAuto Backend = "auto"
	// BackendOpenH264 represents libopenh264 loaded at runtime.
	BackendOpenH264 = h264decoder.BackendOpenH264
	// BackendFFmpeg represents a streaming ffmpeg process.
	BackendFFmpeg = h264decoder.BackendFFmpeg
)

// Info contains information about the selected decoder.
type Info struct {
	// Codec is the codec of the track.
	Codec Codec
	// Backend is the decoding backend being used.
	Backend Backend
}

// Options configures the smart decoder behavior.
type Options struct {
	// Backend is auto, openh264 or ffmpeg. Empty means auto.
	Backend Backend
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// LibraryPath is an optional custom path to libopenh264.
	LibraryPath string
	// Logger receives the backend choice. May be nil.
	Logger ports.Logger
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
)

// available is replaced in tests.
var available = h264decoder.IsAvailable

// ParseBackend validates a backend name from configuration.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendOpenH264, BackendFFmpeg:
		return Backend(s), nil
	}
	return "", fmt.Errorf("%w: %q", h264decoder.ErrUnknownBackend, s)
}

// Select resolves opts.Backend to a backend that can run on this system.
//
// The selection flow for auto:
//   - openh264 when the library loads
//   - ffmpeg when the binary is found
func Select(opts Options) (Backend, error) {
	decOpts := h264decoder.Options{FFmpegPath: opts.FFmpegPath, LibraryPath: opts.LibraryPath}

	switch opts.Backend {
	case "", BackendAuto:
		for _, b := range []Backend{BackendOpenH264, BackendFFmpeg} {
			if available(b, decOpts) {
				return b, nil
			}
		}
		return "", ErrNoDecoderAvailable
	case BackendOpenH264, BackendFFmpeg:
		if !available(opts.Backend, decOpts) {
			return "", fmt.Errorf("%w: %s", ErrNoDecoderAvailable, opts.Backend)
		}
		return opts.Backend, nil
	}
	return "", fmt.Errorf("%w: %q", h264decoder.ErrUnknownBackend, opts.Backend)
}

// New creates a decoder for the track.
func New(track ports.TrackDescriptor, opts Options) (*h264decoder.Decoder, Info, error) {
	codec := codecdetect.FromSampleEntry(track.Config.SampleEntry)
	if !codec.Supported() {
		return nil, Info{Codec: codec}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}

	backend, err := Select(opts)
	if err != nil {
		return nil, Info{Codec: codec}, err
	}

	dec, err := h264decoder.New(track, h264decoder.Options{
		Backend:     backend,
		FFmpegPath:  opts.FFmpegPath,
		LibraryPath: opts.LibraryPath,
	})
	if err != nil {
		return nil, Info{Codec: codec, Backend: backend}, err
	}

	info := Info{Codec: codec, Backend: backend}
	if opts.Logger != nil {
		opts.Logger.Debug("Decoder backend: %s (%dx%d)", backend, track.Width, track.Height)
	}
	return dec, info, nil
}

// NewFactory returns a ports.DecoderFactory creating decoders with opts.
func NewFactory(opts Options) ports.DecoderFactory {
	return func(track ports.TrackDescriptor) (ports.FrameDecoder, error) {
		dec, _, err := New(track, opts)
		if err != nil {
			return nil, err
		}
		return dec, nil
	}
}
