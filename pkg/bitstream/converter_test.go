package bitstream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/user/stagecast/pkg/ports"
)

var (
	testSPS = []byte{0x67, 0x42, 0xc0, 0x1e, 0xda, 0x05, 0x07, 0xe4}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

func testConfig() ports.CodecConfig {
	return ports.CodecConfig{
		SampleEntry: "avc1",
		LengthSize:  4,
		SPS:         [][]byte{testSPS},
		PPS:         [][]byte{testPPS},
	}
}

// nalu returns a NAL unit of the given size whose header carries nalType.
func nalu(nalType byte, size int) []byte {
	n := make([]byte, size)
	n[0] = nalType & 0x1f
	for i := 1; i < size; i++ {
		n[i] = byte(i)
	}
	return n
}

// avcc joins NAL units with 4-byte big endian length prefixes.
func avcc(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		l := len(n)
		out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		out = append(out, n...)
	}
	return out
}

func newTestConverter(t *testing.T, policy InjectPolicy) *Converter {
	t.Helper()
	c, err := NewConverter(testConfig(), policy)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	return c
}

func TestConvert_TwoNALUnits(t *testing.T) {
	c := newTestConverter(t, InjectEveryIDR)

	// The first sample after construction always carries parameter sets.
	if _, err := c.Convert(avcc(nalu(1, 5)), nil); err != nil {
		t.Fatalf("priming Convert failed: %v", err)
	}

	out, err := c.Convert(avcc(nalu(1, 10), nalu(1, 20)), nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if want := 2*4 + 10 + 20; len(out) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(out))
	}
	for _, off := range []int{0, 14} {
		if !bytes.Equal(out[off:off+4], startCode) {
			t.Errorf("expected start code at offset %d, got % x", off, out[off:off+4])
		}
	}
	if out[4] != 0x01 || out[18] != 0x01 {
		t.Errorf("NAL headers not preserved: %#x %#x", out[4], out[18])
	}
}

func TestConvert_IDRInjectsParameterSets(t *testing.T) {
	c := newTestConverter(t, InjectEveryIDR)
	c.primed = true

	idr := nalu(5, 12)
	out, err := c.Convert(avcc(idr), nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	var want []byte
	want = append(want, startCode...)
	want = append(want, testSPS...)
	want = append(want, startCode...)
	want = append(want, testPPS...)
	want = append(want, startCode...)
	want = append(want, idr...)

	if !bytes.Equal(out, want) {
		t.Fatalf("unexpected output\n got: % x\nwant: % x", out, want)
	}
	if n := bytes.Count(out, append(append([]byte{}, startCode...), 0x67)); n != 1 {
		t.Errorf("expected exactly one SPS unit, found %d", n)
	}
	if n := bytes.Count(out, append(append([]byte{}, startCode...), 0x68)); n != 1 {
		t.Errorf("expected exactly one PPS unit, found %d", n)
	}
}

func TestConvert_InjectPolicy(t *testing.T) {
	samples := [][]byte{
		avcc(nalu(5, 8)),
		avcc(nalu(1, 8)),
		avcc(nalu(6, 4), nalu(5, 8)),
	}

	tests := []struct {
		name     string
		policy   InjectPolicy
		injected []bool
	}{
		{"every IDR", InjectEveryIDR, []bool{true, false, true}},
		{"first sample", InjectFirstSample, []bool{true, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConverter(t, tt.policy)
			var buf []byte
			for i, s := range samples {
				var err error
				buf, err = c.Convert(s, buf)
				if err != nil {
					t.Fatalf("sample %d: %v", i, err)
				}
				got := bytes.HasPrefix(buf, c.ParameterSets())
				if got != tt.injected[i] {
					t.Errorf("sample %d: injected=%v, want %v", i, got, tt.injected[i])
				}
			}
		})
	}
}

func TestConvert_ResetReinjects(t *testing.T) {
	c := newTestConverter(t, InjectFirstSample)

	p := avcc(nalu(1, 6))
	first, _ := c.Convert(p, nil)
	if !bytes.HasPrefix(first, c.ParameterSets()) {
		t.Fatal("first sample should carry parameter sets")
	}
	second, _ := c.Convert(p, nil)
	if bytes.HasPrefix(second, c.ParameterSets()) {
		t.Fatal("second sample should not carry parameter sets")
	}

	c.Reset()
	third, _ := c.Convert(p, nil)
	if !bytes.HasPrefix(third, c.ParameterSets()) {
		t.Fatal("sample after Reset should carry parameter sets")
	}
}

func TestConvert_OverwritesBuffer(t *testing.T) {
	c := newTestConverter(t, InjectFirstSample)

	buf, err := c.Convert(avcc(nalu(1, 100)), make([]byte, 0, 16))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	capacity := cap(buf)

	buf, err = c.Convert(avcc(nalu(1, 10)), buf)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(buf) != 14 {
		t.Errorf("expected buffer to be overwritten to 14 bytes, got %d", len(buf))
	}
	if cap(buf) != capacity {
		t.Errorf("expected capacity %d to be reused, got %d", capacity, cap(buf))
	}
}

func TestConvert_MalformedSample(t *testing.T) {
	c := newTestConverter(t, InjectEveryIDR)

	good := avcc(nalu(1, 10))
	tests := []struct {
		name   string
		sample []byte
	}{
		{"length exceeds sample", append([]byte{0, 0, 0, 50}, nalu(1, 10)...)},
		{"truncated second unit", append(append([]byte{}, good...), 0, 0, 0, 9, 0x41)},
		{"trailing bytes", append(append([]byte{}, good...), 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Convert(tt.sample, []byte{1, 2, 3})
			if !errors.Is(err, ErrMalformedSample) {
				t.Fatalf("expected ErrMalformedSample, got %v", err)
			}
			if len(out) != 0 {
				t.Errorf("expected empty output, got %d bytes", len(out))
			}
		})
	}

	// The converter keeps working for the following samples.
	out, err := c.Convert(good, nil)
	if err != nil {
		t.Fatalf("Convert after malformed sample failed: %v", err)
	}
	if !bytes.HasPrefix(out, c.ParameterSets()) {
		t.Error("malformed samples must not consume the first-sample injection")
	}
}

func TestConvert_ShortLengthPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.LengthSize = 2
	c, err := NewConverter(cfg, InjectFirstSample)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	c.primed = true

	payload := nalu(1, 7)
	out, err := c.Convert(append([]byte{0, 7}, payload...), nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if want := append(append([]byte{}, startCode...), payload...); !bytes.Equal(out, want) {
		t.Errorf("got % x, want % x", out, want)
	}
}

func TestNewConverter_Unsupported(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ports.CodecConfig)
	}{
		{"hevc", func(c *ports.CodecConfig) { c.SampleEntry = "hvc1" }},
		{"missing SPS", func(c *ports.CodecConfig) { c.SPS = nil }},
		{"missing PPS", func(c *ports.CodecConfig) { c.PPS = nil }},
		{"PPS in SPS slot", func(c *ports.CodecConfig) { c.SPS = [][]byte{testPPS} }},
		{"bad length size", func(c *ports.CodecConfig) { c.LengthSize = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := NewConverter(cfg, InjectEveryIDR); !errors.Is(err, ErrUnsupportedCodecConfig) {
				t.Errorf("expected ErrUnsupportedCodecConfig, got %v", err)
			}
		})
	}
}

func TestContainsIDR(t *testing.T) {
	if !ContainsIDR(avcc(nalu(9, 2), nalu(5, 10))) {
		t.Error("expected IDR to be detected")
	}
	if ContainsIDR(avcc(nalu(1, 10))) {
		t.Error("non-IDR sample reported as IDR")
	}
	if ContainsIDR([]byte{0, 0, 0, 9, 0x65}) {
		t.Error("malformed sample reported as IDR")
	}
}
