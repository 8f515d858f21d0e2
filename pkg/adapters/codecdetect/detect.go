// Package codecdetect identifies the video codec carried by MP4 tracks.
package codecdetect

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecH265    Codec = "h265"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

// Supported reports whether the playback engine can decode the codec.
func (c Codec) Supported() bool {
	return c == CodecH264
}

// DetectFromFile detects the video codec used in an MP4 file.
func DetectFromFile(path string) (Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return CodecUnknown, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return DetectFromReader(f)
}

// DetectFromReader detects the video codec from an io.ReadSeeker.
// The reader is rewound afterwards.
func DetectFromReader(reader io.ReadSeeker) (Codec, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}

	return FromFile(mp4File)
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	return DetectFromReader(bytes.NewReader(data))
}

// FromFile returns the codec of the first video track of a parsed file.
func FromFile(mp4File *mp4.File) (Codec, error) {
	for _, trak := range Traks(mp4File) {
		if !IsVideo(trak) {
			continue
		}
		return FromTrack(trak), nil
	}
	return CodecUnknown, fmt.Errorf("no video track found")
}

// Traks returns the track boxes of a progressive or fragmented file.
func Traks(mp4File *mp4.File) []*mp4.TrakBox {
	if mp4File.IsFragmented() && mp4File.Init != nil && mp4File.Init.Moov != nil {
		return mp4File.Init.Moov.Traks
	}
	if mp4File.Moov != nil {
		return mp4File.Moov.Traks
	}
	return nil
}

// IsVideo reports whether trak is a video track.
func IsVideo(trak *mp4.TrakBox) bool {
	return trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide"
}

// FromTrack returns the codec of a video track's first sample entry.
func FromTrack(trak *mp4.TrakBox) Codec {
	if !IsVideo(trak) {
		return CodecUnknown
	}

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return CodecUnknown
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		if c := FromSampleEntry(child.Type()); c != CodecUnknown {
			return c
		}
	}

	return CodecUnknown
}

// FromSampleEntry maps a sample entry four-character code to a codec.
func FromSampleEntry(entry string) Codec {
	switch entry {
	case "avc1", "avc3":
		return CodecH264
	case "hvc1", "hev1":
		return CodecH265
	case "av01":
		return CodecAV1
	}
	return CodecUnknown
}
