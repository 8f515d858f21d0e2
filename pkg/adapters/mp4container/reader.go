// Package mp4container implements ports.ContainerReader for progressive and
// fragmented MP4 files using mp4ff.
package mp4container

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/stagecast/pkg/adapters/codecdetect"
	"github.com/user/stagecast/pkg/ports"
)

var (
	// ErrNoMovie is returned when the file has no moov box.
	ErrNoMovie = errors.New("mp4container: no moov box found")

	// ErrUnknownTrack is returned by ReadSample for a track that was not indexed.
	ErrUnknownTrack = errors.New("mp4container: unknown track")
)

// defaultFrameRate is used when the track carries no usable timing.
const defaultFrameRate = 30.0

// Reader opens MP4 files from the local filesystem.
type Reader struct{}

// New creates a new Reader.
func New() *Reader {
	return &Reader{}
}

// Open parses the MP4 file at path.
func (r *Reader) Open(path string) (ports.Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	file, err := OpenReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	file.closer = f
	return file, nil
}

// File is an opened MP4 container.
type File struct {
	reader io.ReadSeeker
	closer io.Closer
	tracks []*track
}

// track indexes the samples of one video track.
type track struct {
	desc  ports.TrackDescriptor
	codec codecdetect.Codec

	// progressive files
	stbl *mp4.StblBox
	sync map[uint32]bool

	// fragmented files
	samples []fragSample
}

// fragSample locates one sample of a fragmented file.
type fragSample struct {
	offset uint64
	size   uint32
	sync   bool
}

// OpenReader parses the boxes of an MP4 container from reader. Media data
// is left in place and read on demand by ReadSample, so the reader must
// stay valid until the File is no longer used.
func OpenReader(reader io.ReadSeeker) (*File, error) {
	mp4File, err := mp4.DecodeFile(reader, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	file := &File{reader: reader}
	if mp4File.IsFragmented() {
		err = file.indexFragmented(mp4File)
	} else {
		err = file.indexProgressive(mp4File)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *File) indexProgressive(mp4File *mp4.File) error {
	if mp4File.Moov == nil {
		return ErrNoMovie
	}

	for _, trak := range mp4File.Moov.Traks {
		if !codecdetect.IsVideo(trak) {
			continue
		}
		t := newTrack(trak)
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsz == nil {
			continue
		}
		stbl := trak.Mdia.Minf.Stbl
		t.stbl = stbl
		t.desc.SampleCount = stbl.Stsz.SampleNumber

		if stbl.Stss != nil {
			t.sync = make(map[uint32]bool, len(stbl.Stss.SampleNumber))
			for _, nr := range stbl.Stss.SampleNumber {
				t.sync[nr] = true
			}
		}

		var duration uint64
		if trak.Mdia.Mdhd != nil {
			duration = trak.Mdia.Mdhd.Duration
		}
		t.desc.FrameRate = frameRate(t.desc.SampleCount, duration, timescale(trak))
		f.tracks = append(f.tracks, t)
	}
	return nil
}

func (f *File) indexFragmented(mp4File *mp4.File) error {
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return ErrNoMovie
	}
	moov := mp4File.Init.Moov

	for _, trak := range moov.Traks {
		if !codecdetect.IsVideo(trak) {
			continue
		}
		t := newTrack(trak)

		var trex *mp4.TrexBox
		if moov.Mvex != nil {
			for _, tx := range moov.Mvex.Trexs {
				if tx.TrackID == t.desc.TrackID {
					trex = tx
					break
				}
			}
		}

		var duration uint64
		for _, seg := range mp4File.Segments {
			for _, frag := range seg.Fragments {
				if frag.Moof == nil {
					continue
				}
				for _, traf := range frag.Moof.Trafs {
					if traf.Tfhd == nil || traf.Tfhd.TrackID != t.desc.TrackID {
						continue
					}
					duration += t.indexTraf(frag.Moof, traf, trex)
				}
			}
		}

		t.desc.SampleCount = uint32(len(t.samples))
		t.desc.FrameRate = frameRate(t.desc.SampleCount, duration, timescale(trak))
		f.tracks = append(f.tracks, t)
	}
	return nil
}

// indexTraf records the position of every sample in the truns of traf and
// returns their total duration.
func (t *track) indexTraf(moof *mp4.MoofBox, traf *mp4.TrafBox, trex *mp4.TrexBox) uint64 {
	base := moof.StartPos
	if traf.Tfhd.HasBaseDataOffset() {
		base = traf.Tfhd.BaseDataOffset
	}

	var duration uint64
	next := base
	for i, trun := range traf.Truns {
		duration += trun.AddSampleDefaultValues(traf.Tfhd, trex)
		offset := next
		if trun.HasDataOffset() {
			offset = uint64(int64(base) + int64(trun.DataOffset))
		} else if i == 0 {
			offset = base
		}
		for _, s := range trun.GetSamples() {
			t.samples = append(t.samples, fragSample{
				offset: offset,
				size:   s.Size,
				sync:   !mp4.DecodeSampleFlags(s.Flags).SampleIsNonSync,
			})
			offset += uint64(s.Size)
		}
		next = offset
	}
	return duration
}

func newTrack(trak *mp4.TrakBox) *track {
	t := &track{codec: codecdetect.FromTrack(trak)}
	if trak.Tkhd != nil {
		t.desc.TrackID = trak.Tkhd.TrackID
		t.desc.Width = int(uint32(trak.Tkhd.Width) >> 16)
		t.desc.Height = int(uint32(trak.Tkhd.Height) >> 16)
	}

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return t
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		entry, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			continue
		}
		if entry.Width > 0 && entry.Height > 0 {
			t.desc.Width = int(entry.Width)
			t.desc.Height = int(entry.Height)
		}
		t.desc.Config.SampleEntry = entry.Type()
		if entry.AvcC != nil {
			t.desc.Config.LengthSize = 4
			t.desc.Config.SPS = entry.AvcC.SPSnalus
			t.desc.Config.PPS = entry.AvcC.PPSnalus
		}
		break
	}
	return t
}

func timescale(trak *mp4.TrakBox) uint32 {
	if trak.Mdia != nil && trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		return trak.Mdia.Mdhd.Timescale
	}
	return 1000
}

// frameRate derives the average frame rate from the sample count and the
// track duration in timescale units.
func frameRate(sampleCount uint32, duration uint64, timescale uint32) float64 {
	if sampleCount == 0 || duration == 0 || timescale == 0 {
		return defaultFrameRate
	}
	return float64(sampleCount) * float64(timescale) / float64(duration)
}

// FindH264Track returns the first video track whose sample entry is avc1 or avc3.
func (f *File) FindH264Track() (ports.TrackDescriptor, bool) {
	for _, t := range f.tracks {
		if t.codec == codecdetect.CodecH264 {
			return t.desc, true
		}
	}
	return ports.TrackDescriptor{}, false
}

// VideoCodec returns the codec of the first video track, if any.
func (f *File) VideoCodec() codecdetect.Codec {
	if len(f.tracks) == 0 {
		return codecdetect.CodecUnknown
	}
	return f.tracks[0].codec
}

// ReadSample returns sample index (1-based) of the track.
func (f *File) ReadSample(trackID uint32, index uint32) (ports.Sample, bool, error) {
	t := f.track(trackID)
	if t == nil {
		return ports.Sample{}, false, fmt.Errorf("%w: %d", ErrUnknownTrack, trackID)
	}
	if index == 0 || index > t.desc.SampleCount {
		return ports.Sample{}, false, nil
	}

	if t.stbl == nil {
		s := t.samples[index-1]
		data, err := readAt(f.reader, s.offset, s.size)
		if err != nil {
			return ports.Sample{}, false, err
		}
		return ports.Sample{
			Index: index,
			Data:  data,
			Sync:  s.sync,
		}, true, nil
	}

	data, err := getSampleData(t.stbl, f.reader, index)
	if err != nil {
		return ports.Sample{}, false, err
	}
	return ports.Sample{
		Index: index,
		Data:  data,
		Sync:  t.sync == nil || t.sync[index],
	}, true, nil
}

func (f *File) track(trackID uint32) *track {
	for _, t := range f.tracks {
		if t.desc.TrackID == trackID {
			return t
		}
	}
	return nil
}

// Close releases the underlying file, if the File owns one.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// getSampleData reads sample data from a progressive MP4 file.
func getSampleData(stbl *mp4.StblBox, reader io.ReadSeeker, sampleNr uint32) ([]byte, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("missing stsc or stsz box")
	}

	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return nil, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	if stbl.Stco != nil {
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("get chunk offset: %w", err)
		}
	} else if stbl.Co64 != nil {
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	} else {
		return nil, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}

	return readAt(reader, offset, stbl.Stsz.GetSampleSize(int(sampleNr)))
}

func readAt(reader io.ReadSeeker, offset uint64, size uint32) ([]byte, error) {
	if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

var (
	_ ports.ContainerReader = (*Reader)(nil)
	_ ports.Container       = (*File)(nil)
)
