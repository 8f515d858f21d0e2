package ports

// TrackDescriptor describes the H.264 track selected for playback.
// It is read once per session and never modified afterwards.
type TrackDescriptor struct {
	TrackID     uint32
	Width       int
	Height      int
	FrameRate   float64
	SampleCount uint32
	Config      CodecConfig
}

// CodecConfig is the decoder configuration carried by the track's sample
// description, i.e. the content of an avcC box.
type CodecConfig struct {
	// SampleEntry is the sample entry four-cc, e.g. "avc1" or "avc3".
	SampleEntry string

	// LengthSize is the size in bytes of each NAL unit length prefix.
	LengthSize int

	SPS [][]byte
	PPS [][]byte
}

// Sample is one container sample: length-prefixed NAL units.
type Sample struct {
	Index uint32 // 1-based
	Data  []byte
	Sync  bool
}

// ContainerReader opens media containers.
type ContainerReader interface {
	// Open opens the container at path.
	Open(path string) (Container, error)
}

// Container gives ordered access to the samples of an opened file.
type Container interface {
	// FindH264Track returns the first H.264 video track.
	FindH264Track() (TrackDescriptor, bool)

	// ReadSample reads sample index (1-based) of the track.
	// It returns ok == false when the index is past the end of the track.
	ReadSample(trackID uint32, index uint32) (sample Sample, ok bool, err error)

	// Close releases the underlying file.
	Close() error
}
