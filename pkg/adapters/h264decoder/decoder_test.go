package h264decoder

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/user/stagecast/pkg/ports"
)

// encodeTestStream produces an Annex-B stream with ffmpeg and libx264,
// skipping the test when either is missing.
func encodeTestStream(t *testing.T, width, height, frames int) []byte {
	t.Helper()

	ffmpegPath, err := findFFmpeg("")
	if err != nil {
		t.Skip("ffmpeg not available")
	}

	out := filepath.Join(t.TempDir(), "stream.h264")
	cmd := exec.Command(ffmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi",
		"-i", "testsrc=size="+strconv.Itoa(width)+"x"+strconv.Itoa(height)+":rate=10",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-pix_fmt", "yuv420p",
		"-f", "h264",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot encode test stream: %v\n%s", err, output)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return data
}

// splitAnnexB splits a stream at 4-byte start codes, keeping the start codes.
func splitAnnexB(stream []byte) [][]byte {
	startCode := []byte{0, 0, 0, 1}
	var units [][]byte
	for len(stream) > 0 {
		next := bytes.Index(stream[4:], startCode)
		if next < 0 {
			units = append(units, stream)
			break
		}
		units = append(units, stream[:next+4])
		stream = stream[next+4:]
	}
	return units
}

func decodeAll(t *testing.T, dec *Decoder, units [][]byte) []ports.Frame {
	t.Helper()
	var frames []ports.Frame
	for i, u := range units {
		f, ok, err := dec.Decode(u)
		if err != nil {
			t.Fatalf("Decode(%d) failed: %v", i, err)
		}
		if ok {
			frames = append(frames, f)
		}
	}
	flushed, err := dec.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	return append(frames, flushed...)
}

func TestFFmpegDecode(t *testing.T) {
	stream := encodeTestStream(t, 160, 120, 5)

	dec, err := New(ports.TrackDescriptor{Width: 160, Height: 120}, Options{Backend: BackendFFmpeg})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer dec.Close()

	frames := decodeAll(t, dec, [][]byte{stream})
	if len(frames) != 5 {
		t.Fatalf("decoded %d frames, want 5", len(frames))
	}
	for i, f := range frames {
		if f.Width != 160 || f.Height != 120 || f.Empty() {
			t.Errorf("frame %d: %dx%d empty=%v", i, f.Width, f.Height, f.Empty())
		}
	}

	// The decoder accepts a new stream after Flush.
	again := decodeAll(t, dec, [][]byte{stream})
	if len(again) != 5 {
		t.Errorf("second pass decoded %d frames, want 5", len(again))
	}
}

func TestOpenH264Decode(t *testing.T) {
	if !IsAvailable(BackendOpenH264, Options{}) {
		t.Skip("libopenh264 not available")
	}
	stream := encodeTestStream(t, 160, 120, 5)

	dec, err := New(ports.TrackDescriptor{Width: 160, Height: 120}, Options{Backend: BackendOpenH264})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer dec.Close()

	frames := decodeAll(t, dec, splitAnnexB(stream))
	if len(frames) == 0 {
		t.Fatal("no frames decoded")
	}
	if frames[0].Width != 160 || frames[0].Height != 120 {
		t.Errorf("dimensions = %dx%d, want 160x120", frames[0].Width, frames[0].Height)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(ports.TrackDescriptor{Width: 16, Height: 16}, Options{Backend: "vdpau"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("error = %v, want ErrUnknownBackend", err)
	}
}

func TestNew_FFmpegCustomPathMissing(t *testing.T) {
	_, err := New(ports.TrackDescriptor{Width: 16, Height: 16}, Options{
		Backend:    BackendFFmpeg,
		FFmpegPath: filepath.Join(t.TempDir(), "no-ffmpeg"),
	})
	if !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("error = %v, want ErrFFmpegNotFound", err)
	}
}

// stubBackend records calls for the Decoder wrapper tests.
type stubBackend struct {
	decoded int
	closed  int
}

func (s *stubBackend) decode(chunk []byte) (ports.Frame, bool, error) {
	s.decoded++
	return ports.NewFrame(2, 2), true, nil
}

func (s *stubBackend) flush() ([]ports.Frame, error) { return nil, nil }

func (s *stubBackend) close() error {
	s.closed++
	return nil
}

func TestDecoder_Lifecycle(t *testing.T) {
	stub := &stubBackend{}
	dec := &Decoder{impl: stub, backend: BackendFFmpeg}

	if _, ok, err := dec.Decode(nil); ok || err != nil {
		t.Errorf("empty chunk: ok=%v err=%v, want no frame and no error", ok, err)
	}
	if stub.decoded != 0 {
		t.Error("empty chunk should not reach the backend")
	}

	if _, ok, err := dec.Decode([]byte{0, 0, 0, 1, 0x65}); !ok || err != nil {
		t.Errorf("Decode: ok=%v err=%v", ok, err)
	}

	if err := dec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if stub.closed != 1 {
		t.Errorf("backend closed %d times, want 1", stub.closed)
	}

	if _, _, err := dec.Decode([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode after Close error = %v, want ErrClosed", err)
	}
	if _, err := dec.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close error = %v, want ErrClosed", err)
	}
}

func TestDecoder_FFmpegRestartReported(t *testing.T) {
	ff := &ffmpegDecoder{
		ffmpegPath: filepath.Join(t.TempDir(), "no-ffmpeg"),
		width:      16,
		height:     16,
	}
	dec := &Decoder{impl: ff, backend: BackendFFmpeg}

	if !dec.Lagging() {
		t.Error("ffmpeg output should be reported as lagging")
	}
	if dec.Restarted() {
		t.Error("fresh decoder reported a restart")
	}

	if _, _, err := dec.Decode([]byte{0, 0, 0, 1, 0x65}); err == nil {
		t.Fatal("expected an error when the ffmpeg process cannot start")
	}
	if !dec.Restarted() {
		t.Error("failed start should be reported as a restart")
	}
	if dec.Restarted() {
		t.Error("restart report should be cleared after reading it")
	}

	openh := &Decoder{impl: &stubBackend{}, backend: BackendOpenH264}
	if openh.Lagging() || openh.Restarted() {
		t.Error("openh264 decodes synchronously and never restarts")
	}
}

func TestPlanesToFrame(t *testing.T) {
	// 4x2 picture with padded strides, mid-grey chroma.
	p := planes{
		width:   4,
		height:  2,
		yStride: 8,
		cStride: 4,
		y:       []byte{0, 0, 255, 255, 9, 9, 9, 9, 0, 0, 255, 255, 9, 9, 9, 9},
		cb:      []byte{128, 128, 0, 0},
		cr:      []byte{128, 128, 0, 0},
	}

	f := p.toFrame()
	if f.Width != 4 || f.Height != 2 || len(f.Pix) != 4*2*3 {
		t.Fatalf("frame = %dx%d with %d bytes", f.Width, f.Height, len(f.Pix))
	}

	black := f.Pix[0:3]
	white := f.Pix[2*3 : 3*3]
	for i := 0; i < 3; i++ {
		if black[i] > 2 {
			t.Errorf("black channel %d = %d", i, black[i])
		}
		if white[i] < 253 {
			t.Errorf("white channel %d = %d", i, white[i])
		}
	}
}
