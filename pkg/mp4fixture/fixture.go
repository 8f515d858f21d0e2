// Package mp4fixture builds small fragmented and progressive MP4 files
// carrying synthetic H.264 samples. It is used by tests across the module.
package mp4fixture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Baseline-profile 320x240 parameter sets.
var (
	SPS = []byte{0x67, 0x42, 0xc0, 0x1e, 0xda, 0x05, 0x07, 0xe4}
	PPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

// ErrNoSamples is returned when Options have no samples.
var ErrNoSamples = errors.New("mp4fixture: no samples")

// Sample is one AVCC sample of the fixture.
type Sample struct {
	Data []byte
	Sync bool
}

// Options describes the fixture to build.
type Options struct {
	Width   int
	Height  int
	FPS     int
	Samples []Sample

	// SampleEntry defaults to "avc1". Other values produce a video track
	// without an avcC box.
	SampleEntry string

	// Progressive layout only. SamplesPerChunk defaults to 2; Co64 writes
	// chunk offsets to a co64 box instead of stco.
	SamplesPerChunk int
	Co64            bool
}

func (o *Options) setDefaults() error {
	if len(o.Samples) == 0 {
		return ErrNoSamples
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.Width == 0 || o.Height == 0 {
		o.Width, o.Height = 320, 240
	}
	if o.SampleEntry == "" {
		o.SampleEntry = "avc1"
	}
	if o.SamplesPerChunk <= 0 {
		o.SamplesPerChunk = 2
	}
	return nil
}

// sampleDur is the duration of every sample in track timescale units; the
// timescale is FPS*sampleDur.
const sampleDur = 1000

func setSampleEntry(trak *mp4.TrakBox, opts Options) error {
	var entry *mp4.VisualSampleEntryBox
	if opts.SampleEntry == "avc1" || opts.SampleEntry == "avc3" {
		avcC, err := mp4.CreateAvcC([][]byte{SPS}, [][]byte{PPS}, true)
		if err != nil {
			return fmt.Errorf("create avcC: %w", err)
		}
		entry = mp4.CreateVisualSampleEntryBox(opts.SampleEntry, uint16(opts.Width), uint16(opts.Height), avcC)
	} else {
		entry = mp4.CreateVisualSampleEntryBox(opts.SampleEntry, uint16(opts.Width), uint16(opts.Height), nil)
	}
	trak.Mdia.Minf.Stbl.Stsd.AddChild(entry)
	trak.Tkhd.Width = mp4.Fixed32(opts.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(opts.Height << 16)
	return nil
}

// Build encodes the fixture as ftyp + moov + moof/mdat.
func Build(opts Options) ([]byte, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}

	timescale := uint32(opts.FPS * sampleDur)
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "en")
	if err := setSampleEntry(init.Moov.Trak, opts); err != nil {
		return nil, err
	}

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	dur := uint32(sampleDur)
	for i, s := range opts.Samples {
		flags := mp4.NonSyncSampleFlags
		if s.Sync {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(s.Data)),
				Dur:   dur,
			},
			DecodeTime: uint64(i) * uint64(dur),
			Data:       s.Data,
		})
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildProgressive encodes the fixture as ftyp + moov + mdat with the
// samples grouped into chunks of SamplesPerChunk. Only Sync samples are
// listed in stss.
func BuildProgressive(opts Options) ([]byte, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}

	timescale := uint32(opts.FPS * sampleDur)
	count := uint32(len(opts.Samples))

	moov := mp4.NewMoovBox()
	mvhd := mp4.CreateMvhd()
	mvhd.Duration = uint64(count) * uint64(mvhd.Timescale) / uint64(opts.FPS)
	moov.AddChild(mvhd)
	trak := mp4.CreateEmptyTrak(1, timescale, "video", "und")
	moov.AddChild(trak)
	if err := setSampleEntry(trak, opts); err != nil {
		return nil, err
	}
	trak.Mdia.Mdhd.Duration = uint64(count) * sampleDur

	stbl := trak.Mdia.Minf.Stbl
	stbl.Stts.SampleCount = []uint32{count}
	stbl.Stts.SampleTimeDelta = []uint32{sampleDur}

	per := uint32(opts.SamplesPerChunk)
	chunks := (count + per - 1) / per
	if err := stbl.Stsc.AddEntry(1, per, 1); err != nil {
		return nil, fmt.Errorf("stsc: %w", err)
	}
	if rem := count % per; rem != 0 && chunks > 1 {
		if err := stbl.Stsc.AddEntry(chunks, rem, 1); err != nil {
			return nil, fmt.Errorf("stsc: %w", err)
		}
	}

	stss := &mp4.StssBox{}
	var payload []byte
	var chunkStarts []uint64
	for i, s := range opts.Samples {
		if uint32(i)%per == 0 {
			chunkStarts = append(chunkStarts, uint64(len(payload)))
		}
		stbl.Stsz.SampleSize = append(stbl.Stsz.SampleSize, uint32(len(s.Data)))
		if s.Sync {
			stss.SampleNumber = append(stss.SampleNumber, uint32(i+1))
		}
		payload = append(payload, s.Data...)
	}
	stbl.Stsz.SampleNumber = count
	stbl.AddChild(stss)

	// Offsets are patched once the moov size is known; their count fixes it.
	if opts.Co64 {
		co64 := &mp4.Co64Box{ChunkOffset: make([]uint64, len(chunkStarts))}
		for i, c := range stbl.Children {
			if c == stbl.Stco {
				stbl.Children[i] = co64
			}
		}
		stbl.Stco = nil
		stbl.Co64 = co64
	} else {
		stbl.Stco.ChunkOffset = make([]uint32, len(chunkStarts))
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	mdat := &mp4.MdatBox{}
	mdat.SetData(payload)
	payloadStart := ftyp.Size() + moov.Size() + mdat.HeaderSize()
	for i, start := range chunkStarts {
		if opts.Co64 {
			stbl.Co64.ChunkOffset[i] = payloadStart + start
		} else {
			stbl.Stco.ChunkOffset[i] = uint32(payloadStart + start)
		}
	}

	var buf bytes.Buffer
	for _, box := range []mp4.Box{ftyp, moov, mdat} {
		if err := box.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", box.Type(), err)
		}
	}
	return buf.Bytes(), nil
}

// Write builds the fixture and stores it as dir/name.
func Write(dir, name string, opts Options) (string, error) {
	return store(dir, name, opts, Build)
}

// WriteProgressive builds a progressive fixture and stores it as dir/name.
func WriteProgressive(dir, name string, opts Options) (string, error) {
	return store(dir, name, opts, BuildProgressive)
}

func store(dir, name string, opts Options, build func(Options) ([]byte, error)) (string, error) {
	data, err := build(opts)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// NALU returns a NAL unit of size bytes with the given type. The second
// byte carries tag so decoders under test can tell samples apart.
func NALU(nalType byte, size int, tag byte) []byte {
	if size < 2 {
		size = 2
	}
	n := make([]byte, size)
	n[0] = 0x60 | nalType&0x1f
	n[1] = tag
	for i := 2; i < size; i++ {
		n[i] = byte(i)
	}
	return n
}

// AVCC joins NAL units with 4-byte big endian length prefixes.
func AVCC(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		l := len(n)
		out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		out = append(out, n...)
	}
	return out
}

// GOP returns count samples: an IDR sample followed by non-IDR slices.
// Sample i (0-based) carries tag byte(i+1).
func GOP(count int) []Sample {
	samples := make([]Sample, count)
	for i := range samples {
		if i == 0 {
			samples[i] = Sample{Data: AVCC(NALU(5, 32, byte(i+1))), Sync: true}
			continue
		}
		samples[i] = Sample{Data: AVCC(NALU(1, 24, byte(i+1)))}
	}
	return samples
}

// Corrupt returns a sample whose length prefix runs past its end.
func Corrupt() Sample {
	return Sample{Data: []byte{0, 0, 0x10, 0, 0x41, 0x00}}
}
