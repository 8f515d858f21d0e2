// Package bitstream re-frames MP4 (AVCC) H.264 samples into an Annex-B
// elementary stream that a standalone decoder can consume.
package bitstream

import (
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"

	"github.com/user/stagecast/pkg/ports"
)

var (
	// ErrUnsupportedCodecConfig is returned when a track configuration is not
	// H.264 or lacks SPS/PPS parameter sets.
	ErrUnsupportedCodecConfig = errors.New("bitstream: unsupported codec configuration")

	// ErrMalformedSample is returned when a NAL length prefix runs past the
	// end of the sample. Only the offending sample is affected.
	ErrMalformedSample = errors.New("bitstream: malformed sample")
)

// InjectPolicy selects when cached SPS/PPS units are written in-band.
type InjectPolicy int

const (
	// InjectEveryIDR writes parameter sets before every sample carrying an
	// IDR slice, and before the first sample after construction or Reset.
	InjectEveryIDR InjectPolicy = iota
	// InjectFirstSample writes parameter sets only before the first sample
	// after construction or Reset.
	InjectFirstSample
)

// String returns the configuration name of the policy.
func (p InjectPolicy) String() string {
	switch p {
	case InjectFirstSample:
		return "first_sample"
	default:
		return "every_idr"
	}
}

// ParseInjectPolicy parses a configuration name. Unknown names select InjectEveryIDR.
func ParseInjectPolicy(s string) InjectPolicy {
	if s == "first_sample" {
		return InjectFirstSample
	}
	return InjectEveryIDR
}

var startCode = []byte{0, 0, 0, 1}

// Converter turns length-prefixed samples into start-code delimited ones.
// A Converter is owned by a single goroutine.
type Converter struct {
	lengthSize    int
	parameterSets []byte
	policy        InjectPolicy
	primed        bool
}

// NewConverter builds a converter from the track's codec configuration.
// Parameter sets are copied once into Annex-B form and reused for every sample.
func NewConverter(cfg ports.CodecConfig, policy InjectPolicy) (*Converter, error) {
	switch cfg.SampleEntry {
	case "avc1", "avc3":
	default:
		return nil, fmt.Errorf("%w: sample entry %q", ErrUnsupportedCodecConfig, cfg.SampleEntry)
	}

	lengthSize := cfg.LengthSize
	if lengthSize == 0 {
		lengthSize = 4
	}
	if lengthSize != 1 && lengthSize != 2 && lengthSize != 4 {
		return nil, fmt.Errorf("%w: NAL length size %d", ErrUnsupportedCodecConfig, lengthSize)
	}

	if len(cfg.SPS) == 0 || len(cfg.PPS) == 0 {
		return nil, fmt.Errorf("%w: missing SPS/PPS", ErrUnsupportedCodecConfig)
	}

	var ps []byte
	for _, sps := range cfg.SPS {
		if len(sps) == 0 || avc.GetNaluType(sps[0]) != avc.NALU_SPS {
			return nil, fmt.Errorf("%w: invalid SPS", ErrUnsupportedCodecConfig)
		}
		ps = append(ps, startCode...)
		ps = append(ps, sps...)
	}
	for _, pps := range cfg.PPS {
		if len(pps) == 0 || avc.GetNaluType(pps[0]) != avc.NALU_PPS {
			return nil, fmt.Errorf("%w: invalid PPS", ErrUnsupportedCodecConfig)
		}
		ps = append(ps, startCode...)
		ps = append(ps, pps...)
	}

	return &Converter{
		lengthSize:    lengthSize,
		parameterSets: ps,
		policy:        policy,
	}, nil
}

// Reset makes the next converted sample carry parameter sets again.
func (c *Converter) Reset() {
	c.primed = false
}

// ParameterSets returns the Annex-B encoded SPS and PPS units.
func (c *Converter) ParameterSets() []byte {
	return c.parameterSets
}

// Convert writes the Annex-B form of sample into out, overwriting its
// previous contents, and returns the resulting slice. Passing the returned
// slice back in on the next call reuses its capacity.
//
// On ErrMalformedSample the returned slice is empty and the converter state
// is unchanged.
func (c *Converter) Convert(sample []byte, out []byte) ([]byte, error) {
	out = out[:0]

	idr, err := c.scan(sample)
	if err != nil {
		return out, err
	}

	if !c.primed || (idr && c.policy == InjectEveryIDR) {
		out = append(out, c.parameterSets...)
		c.primed = true
	}

	for pos := 0; pos < len(sample); {
		n := c.naluLength(sample[pos:])
		pos += c.lengthSize
		if n == 0 {
			continue
		}
		out = append(out, startCode...)
		out = append(out, sample[pos:pos+n]...)
		pos += n
	}
	return out, nil
}

// scan validates the length prefixes and reports whether the sample holds an IDR slice.
func (c *Converter) scan(sample []byte) (idr bool, err error) {
	for pos := 0; pos < len(sample); {
		if len(sample)-pos < c.lengthSize {
			return false, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrMalformedSample, len(sample)-pos, pos)
		}
		n := c.naluLength(sample[pos:])
		pos += c.lengthSize
		if n > len(sample)-pos {
			return false, fmt.Errorf("%w: NAL of %d bytes at offset %d exceeds sample size %d",
				ErrMalformedSample, n, pos, len(sample))
		}
		if n > 0 && avc.GetNaluType(sample[pos]) == avc.NALU_IDR {
			idr = true
		}
		pos += n
	}
	return idr, nil
}

func (c *Converter) naluLength(b []byte) int {
	switch c.lengthSize {
	case 1:
		return int(b[0])
	case 2:
		return int(b[0])<<8 | int(b[1])
	default:
		return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	}
}

// ContainsIDR reports whether an AVCC sample with 4-byte length prefixes
// carries an IDR slice. Malformed samples report false.
func ContainsIDR(sample []byte) bool {
	c := Converter{lengthSize: 4}
	idr, err := c.scan(sample)
	return err == nil && idr
}
