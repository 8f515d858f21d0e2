// Package ports defines interfaces between the playback engine and its collaborators.
package ports

// FrameDecoder abstracts a stateful, streaming H.264 decoder.
//
// The decoder keeps its reference state between calls: a chunk carrying only
// parameter sets, or the first slices of a stream, may legitimately produce
// no picture. That case is reported as ok == false with a nil error and is
// distinct from a decode failure.
type FrameDecoder interface {
	// Decode feeds one Annex-B chunk and returns a frame when one is ready.
	Decode(chunk []byte) (frame Frame, ok bool, err error)

	// Flush drains pictures still buffered inside the decoder.
	// The decoder stays usable afterwards.
	Flush() ([]Frame, error)

	// Close releases decoder resources.
	Close() error
}

// DecoderStatus is implemented by decoders whose pictures can trail the
// chunks fed to Decode, or whose backend can lose its stream state.
type DecoderStatus interface {
	// Lagging reports whether a picture returned by Decode may have been
	// completed by an earlier chunk.
	Lagging() bool

	// Restarted reports whether the decoder lost its stream state since the
	// previous call, so the next chunk must carry parameter sets again.
	// The report is cleared by the call.
	Restarted() bool
}

// DecoderFactory creates a decoder configured for the given track.
type DecoderFactory func(track TrackDescriptor) (FrameDecoder, error)
