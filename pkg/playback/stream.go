// Package playback drives H.264 playback from MP4 containers to display
// sinks: an opened stream, the paced playback loop, per-target sessions
// and thumbnail extraction.
package playback

import (
	"errors"
	"fmt"

	"github.com/user/stagecast/pkg/bitstream"
	"github.com/user/stagecast/pkg/ports"
)

var (
	// ErrOpen is returned when the media file cannot be opened or parsed.
	ErrOpen = errors.New("playback: cannot open media")

	// ErrTrackNotFound is returned when the file has no playable H.264 track.
	ErrTrackNotFound = errors.New("playback: no H.264 track")

	// ErrDecode wraps per-chunk decoder failures.
	ErrDecode = errors.New("playback: decode failed")

	// ErrMalformedSample is returned for samples whose NAL framing is broken.
	ErrMalformedSample = bitstream.ErrMalformedSample

	// ErrUnsupportedCodecConfig is returned when the track configuration is unusable.
	ErrUnsupportedCodecConfig = bitstream.ErrUnsupportedCodecConfig

	// errEndOfTrack signals that the container has no sample at the index.
	errEndOfTrack = errors.New("playback: end of track")
)

// Stream is an opened H.264 track with its converter and decoder.
// A Stream is owned by one goroutine at a time.
type Stream struct {
	track     ports.TrackDescriptor
	container ports.Container
	converter *bitstream.Converter
	decoder   ports.FrameDecoder
	status    ports.DecoderStatus

	// buf is reused for every converted sample.
	buf []byte
}

// OpenStream opens path and prepares the first H.264 track for decoding.
// Every error returned here is fatal to the playback attempt.
func OpenStream(path string, reader ports.ContainerReader, factory ports.DecoderFactory, policy bitstream.InjectPolicy) (*Stream, error) {
	container, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	track, ok := container.FindH264Track()
	if !ok {
		container.Close()
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, path)
	}
	if track.SampleCount == 0 {
		container.Close()
		return nil, fmt.Errorf("%w: %s: track %d has no samples", ErrTrackNotFound, path, track.TrackID)
	}

	converter, err := bitstream.NewConverter(track.Config, policy)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	decoder, err := factory(track)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	status, _ := decoder.(ports.DecoderStatus)
	return &Stream{
		track:     track,
		container: container,
		converter: converter,
		decoder:   decoder,
		status:    status,
	}, nil
}

// Track returns the descriptor of the opened track.
func (s *Stream) Track() ports.TrackDescriptor {
	return s.track
}

// decodeSample reads, converts and decodes one sample.
func (s *Stream) decodeSample(index uint32) (ports.Frame, bool, error) {
	sample, ok, err := s.container.ReadSample(s.track.TrackID, index)
	if err != nil {
		return ports.Frame{}, false, fmt.Errorf("read sample %d: %w", index, err)
	}
	if !ok {
		return ports.Frame{}, false, errEndOfTrack
	}

	s.buf, err = s.converter.Convert(sample.Data, s.buf)
	if err != nil {
		return ports.Frame{}, false, fmt.Errorf("sample %d: %w", index, err)
	}

	frame, ok, err := s.decoder.Decode(s.buf)
	s.checkRestart()
	if err != nil {
		return ports.Frame{}, false, fmt.Errorf("%w: sample %d: %v", ErrDecode, index, err)
	}
	if !ok || frame.Empty() {
		return ports.Frame{}, false, nil
	}
	if s.status == nil || !s.status.Lagging() {
		frame.SampleIndex = index
	}
	return frame, true, nil
}

// checkRestart makes the next converted sample carry parameter sets again
// when the decoder backend started over.
func (s *Stream) checkRestart() {
	if s.status != nil && s.status.Restarted() {
		s.converter.Reset()
	}
}

// flush drains the decoder and drops empty frames.
func (s *Stream) flush() ([]ports.Frame, error) {
	frames, err := s.decoder.Flush()
	s.checkRestart()
	out := frames[:0]
	for _, f := range frames {
		if !f.Empty() {
			out = append(out, f)
		}
	}
	if err != nil {
		return out, fmt.Errorf("%w: flush: %v", ErrDecode, err)
	}
	return out, nil
}

// rewind prepares the stream for a new pass from sample 1.
func (s *Stream) rewind() {
	s.converter.Reset()
}

// Close releases the decoder and the container.
func (s *Stream) Close() error {
	decErr := s.decoder.Close()
	conErr := s.container.Close()
	if decErr != nil {
		return decErr
	}
	return conErr
}
