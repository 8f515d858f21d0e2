package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/stagecast/pkg/adapters/fitsink"
	"github.com/user/stagecast/pkg/adapters/logger"
	"github.com/user/stagecast/pkg/adapters/smartdecoder"
	"github.com/user/stagecast/pkg/bitstream"
	"github.com/user/stagecast/pkg/media"
	"github.com/user/stagecast/pkg/mocks"
	"github.com/user/stagecast/pkg/playback"
	"github.com/user/stagecast/pkg/ports"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	opts := cfg.PlaybackOptions(nil)
	if opts.RestartPause != playback.DefaultRestartPause {
		t.Errorf("RestartPause = %v", opts.RestartPause)
	}
	if opts.InjectPolicy != bitstream.InjectEveryIDR {
		t.Errorf("InjectPolicy = %v", opts.InjectPolicy)
	}

	w, h, mode, bg := cfg.Screen(ports.TargetOutput)
	if w != 1920 || h != 1080 || mode != fitsink.Contain {
		t.Errorf("output screen = %dx%d %v", w, h, mode)
	}
	if bg != (color.RGBA{A: 255}) {
		t.Errorf("background = %v", bg)
	}
}

func TestParse_MergesOverDefaults(t *testing.T) {
	data := []byte(`
log_level: debug
decoder:
  backend: ffmpeg
  ffmpeg_path: /opt/ffmpeg
playback:
  restart_pause_ms: 0
  inject_policy: first_sample
media:
  video_extensions: [mp4]
  logo: /srv/logo.png
targets:
  output:
    width: 1280
    height: 720
    fit: cover
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Level() != ports.LevelDebug {
		t.Errorf("Level = %v", cfg.Level())
	}

	decOpts, err := cfg.DecoderOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if decOpts.Backend != smartdecoder.BackendFFmpeg || decOpts.FFmpegPath != "/opt/ffmpeg" {
		t.Errorf("decoder options = %+v", decOpts)
	}

	opts := cfg.PlaybackOptions(nil)
	if opts.RestartPause >= 0 {
		t.Errorf("RestartPause = %v, want disabled", opts.RestartPause)
	}
	if opts.InjectPolicy != bitstream.InjectFirstSample {
		t.Errorf("InjectPolicy = %v", opts.InjectPolicy)
	}

	w, h, mode, bg := cfg.Screen(ports.TargetOutput)
	if w != 1280 || h != 720 || mode != fitsink.Cover {
		t.Errorf("output screen = %dx%d %v", w, h, mode)
	}
	if bg != (color.RGBA{A: 255}) {
		t.Errorf("background should keep its default, got %v", bg)
	}
	if w, _, _, _ := cfg.Screen(ports.TargetPreview); w != 640 {
		t.Errorf("preview width = %d, want default 640", w)
	}

	if len(cfg.Media.ImageExtensions) != len(media.DefaultImageExtensions) {
		t.Error("image extensions should keep their defaults")
	}
	if len(cfg.Media.VideoExtensions) != 1 {
		t.Errorf("video extensions = %v", cfg.Media.VideoExtensions)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "decoder: [\n"},
		{"backend", "decoder:\n  backend: vaapi\n"},
		{"policy", "playback:\n  inject_policy: never\n"},
		{"target", "targets:\n  projector:\n    width: 10\n    height: 10\n"},
		{"fit", "targets:\n  preview:\n    fit: stretch\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagecast.yaml")
	if err := os.WriteFile(path, []byte("playback:\n  restart_pause_ms: 40\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if got := cfg.PlaybackOptions(nil).RestartPause; got != 40*time.Millisecond {
		t.Errorf("RestartPause = %v", got)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#ff8000", color.RGBA{R: 255, G: 128, B: 0, A: 255}},
		{"1A2b3C", color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 255}},
		{"#00000080", color.RGBA{A: 0x80}},
		{"", color.Black},
		{"#fff", color.Black},
		{"#gg0000", color.Black},
	}
	for _, tt := range tests {
		if got := ParseColor(tt.in); got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToEngineConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Media.Logo = "logo.png"

	ec, err := cfg.ToEngineConfig(&mocks.Dispatcher{}, logger.NewNoop())
	if err != nil {
		t.Fatalf("ToEngineConfig failed: %v", err)
	}
	if ec.Reader == nil || ec.Decoders == nil || ec.FileSystem == nil || ec.Dispatcher == nil {
		t.Error("collaborators not wired")
	}
	if ec.LogoPath != "logo.png" {
		t.Errorf("LogoPath = %q", ec.LogoPath)
	}
	if !ec.Classifier.IsVideo("clip.MOV") || !ec.Classifier.IsImage("a.webp") {
		t.Error("classifier does not use the default extensions")
	}

	cfg.Decoder.Backend = "vaapi"
	if _, err := cfg.ToEngineConfig(nil, logger.NewNoop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
