package playback

import (
	"errors"

	"github.com/user/stagecast/pkg/adapters/logger"
	"github.com/user/stagecast/pkg/bitstream"
	"github.com/user/stagecast/pkg/ports"
)

// Thumbnailer extracts a single representative frame from a video.
type Thumbnailer struct {
	reader   ports.ContainerReader
	decoders ports.DecoderFactory
	policy   bitstream.InjectPolicy
	log      ports.Logger
}

// NewThumbnailer creates a Thumbnailer. A nil logger discards output.
func NewThumbnailer(reader ports.ContainerReader, decoders ports.DecoderFactory, policy bitstream.InjectPolicy, log ports.Logger) *Thumbnailer {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Thumbnailer{
		reader:   reader,
		decoders: decoders,
		policy:   policy,
		log:      log.WithComponent("thumbnail"),
	}
}

// StartIndex returns the first sample probed for a track of count samples.
func StartIndex(count uint32) uint32 {
	if count/2 == 0 {
		return 1
	}
	return count / 2
}

// Extract decodes forward from the middle of the track and returns the
// first frame produced. ok is false when nothing could be decoded.
func (t *Thumbnailer) Extract(path string) (frame ports.Frame, ok bool) {
	stream, err := OpenStream(path, t.reader, t.decoders, t.policy)
	if err != nil {
		t.log.Warn("No thumbnail for %s: %v", path, err)
		return ports.Frame{}, false
	}
	defer stream.Close()

	count := stream.track.SampleCount
	for index := StartIndex(count); index <= count; index++ {
		f, ok, err := stream.decodeSample(index)
		if errors.Is(err, errEndOfTrack) {
			break
		}
		if err != nil {
			t.log.Debug("%s: %v", path, err)
			continue
		}
		if ok {
			return f, true
		}
	}

	frames, err := stream.flush()
	if err != nil {
		t.log.Debug("%s: %v", path, err)
	}
	if len(frames) > 0 {
		return frames[0], true
	}

	t.log.Warn("No thumbnail for %s: no frame decoded", path)
	return ports.Frame{}, false
}
