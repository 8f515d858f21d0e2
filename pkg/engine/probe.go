package engine

import (
	"fmt"

	"github.com/user/stagecast/pkg/adapters/codecdetect"
	"github.com/user/stagecast/pkg/media"
	"github.com/user/stagecast/pkg/playback"
	"github.com/user/stagecast/pkg/ports"
)

// ProbeResult describes a media file.
type ProbeResult struct {
	Path  string
	Kind  media.Kind
	Codec codecdetect.Codec

	// Track is set for videos carrying an H.264 track.
	Track    ports.TrackDescriptor
	HasTrack bool

	// Width and Height are the picture size for images and playable videos.
	Width  int
	Height int
}

// codecReporter is implemented by containers that know their video codec
// even when it is not playable.
type codecReporter interface {
	VideoCodec() codecdetect.Codec
}

// Probe inspects path without starting playback.
func (e *Engine) Probe(path string) (ProbeResult, error) {
	res := ProbeResult{Path: path, Kind: e.classifier.Classify(path)}

	switch res.Kind {
	case media.KindImage:
		frame, err := media.LoadImage(e.cfg.FileSystem, path)
		if err != nil {
			return res, err
		}
		res.Width, res.Height = frame.Width, frame.Height
		return res, nil
	case media.KindVideo:
	default:
		return res, fmt.Errorf("%w: %s", ErrUnsupportedMedia, path)
	}

	container, err := e.cfg.Reader.Open(path)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", playback.ErrOpen, path, err)
	}
	defer container.Close()

	res.Codec = codecdetect.CodecUnknown
	if cr, ok := container.(codecReporter); ok {
		res.Codec = cr.VideoCodec()
	}

	track, ok := container.FindH264Track()
	if !ok {
		return res, nil
	}
	res.Track, res.HasTrack = track, true
	res.Width, res.Height = track.Width, track.Height
	if res.Codec == codecdetect.CodecUnknown {
		res.Codec = codecdetect.FromSampleEntry(track.Config.SampleEntry)
	}
	return res, nil
}
