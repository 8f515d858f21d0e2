package h264decoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

// maxPendingFrames bounds the frames buffered between the ffmpeg reader and Decode.
const maxPendingFrames = 32

// customFFmpegPath is set via SetFFmpegPath.
var customFFmpegPath string

// SetFFmpegPath sets a custom path to the ffmpeg binary used when
// Options.FFmpegPath is empty.
func SetFFmpegPath(path string) {
	customFFmpegPath = path
}

// findFFmpeg searches for ffmpeg in PATH and common locations.
// An explicit path wins over the package-wide custom path.
func findFFmpeg(explicit string) (string, error) {
	for _, custom := range []string{explicit, customFFmpegPath, os.Getenv("FFMPEG_PATH")} {
		if custom == "" {
			continue
		}
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, custom)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}

	path, err := exec.LookPath(execName)
	if err == nil {
		return path, nil
	}

	var commonPaths []string
	if runtime.GOOS == "windows" {
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files (x86)\ffmpeg\bin\ffmpeg.exe`,
		}
	} else {
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrFFmpegNotFound
}

// ffmpegDecoder streams Annex-B chunks into one ffmpeg process and reads
// raw RGB24 pictures back from its stdout.
type ffmpegDecoder struct {
	ffmpegPath string
	width      int
	height     int

	proc *ffmpegProcess

	// lost is set when a process ended outside close; the next decode
	// starts a fresh one without the earlier parameter sets.
	lost bool
}

// ffmpegProcess is one running ffmpeg instance.
type ffmpegProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	mu      sync.Mutex
	pending []ports.Frame
	done    chan struct{}
	readErr error
}

func newFFmpeg(track ports.TrackDescriptor, path string) (*ffmpegDecoder, error) {
	ffmpegPath, err := findFFmpeg(path)
	if err != nil {
		return nil, err
	}
	if track.Width <= 0 || track.Height <= 0 {
		return nil, fmt.Errorf("%w: track has no dimensions", ErrDecodeFailed)
	}
	return &ffmpegDecoder{
		ffmpegPath: ffmpegPath,
		width:      track.Width,
		height:     track.Height,
	}, nil
}

func (d *ffmpegDecoder) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "h264",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-flags", "low_delay",
		"-fflags", "nobuffer",
		"-i", "pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", strconv.Itoa(d.width) + "x" + strconv.Itoa(d.height),
		"pipe:1",
	}
}

func (d *ffmpegDecoder) start() error {
	cmd := exec.Command(d.ffmpegPath, d.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	p := &ffmpegProcess{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go p.readFrames(stdout, d.width, d.height)
	d.proc = p
	return nil
}

// readFrames collects pictures until ffmpeg closes stdout.
func (p *ffmpegProcess) readFrames(stdout io.Reader, width, height int) {
	defer close(p.done)
	for {
		frame := ports.NewFrame(width, height)
		if _, err := io.ReadFull(stdout, frame.Pix); err != nil {
			if !errors.Is(err, io.EOF) {
				p.mu.Lock()
				p.readErr = err
				p.mu.Unlock()
			}
			return
		}
		p.mu.Lock()
		if len(p.pending) == maxPendingFrames {
			p.pending = p.pending[1:]
		}
		p.pending = append(p.pending, frame)
		p.mu.Unlock()
	}
}

func (p *ffmpegProcess) pop() (ports.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return ports.Frame{}, false
	}
	f := p.pending[0]
	p.pending = p.pending[1:]
	return f, true
}

// finish closes stdin, waits for all output and the process exit.
func (p *ffmpegProcess) finish() ([]ports.Frame, error) {
	p.stdin.Close()
	<-p.done
	waitErr := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	frames := p.pending
	p.pending = nil
	if p.readErr != nil {
		return frames, fmt.Errorf("%w: %v", ErrDecodeFailed, p.readErr)
	}
	if waitErr != nil {
		return frames, fmt.Errorf("%w: %v\nstderr: %s", ErrDecodeFailed, waitErr, p.stderr.String())
	}
	return frames, nil
}

func (p *ffmpegProcess) kill() {
	p.stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	<-p.done
	p.cmd.Wait()
}

func (d *ffmpegDecoder) decode(chunk []byte) (ports.Frame, bool, error) {
	if d.proc == nil {
		if err := d.start(); err != nil {
			d.lost = true
			return ports.Frame{}, false, err
		}
	}

	if _, err := d.proc.stdin.Write(chunk); err != nil {
		d.proc.kill()
		d.proc = nil
		d.lost = true
		return ports.Frame{}, false, fmt.Errorf("%w: write chunk: %v", ErrDecodeFailed, err)
	}

	frame, ok := d.proc.pop()
	return frame, ok, nil
}

// flush ends the current ffmpeg process. The next decode starts a new one.
func (d *ffmpegDecoder) flush() ([]ports.Frame, error) {
	if d.proc == nil {
		return nil, nil
	}
	frames, err := d.proc.finish()
	d.proc = nil
	d.lost = true
	return frames, err
}

func (d *ffmpegDecoder) restarted() bool {
	lost := d.lost
	d.lost = false
	return lost
}

func (d *ffmpegDecoder) close() error {
	if d.proc != nil {
		d.proc.kill()
		d.proc = nil
	}
	return nil
}
