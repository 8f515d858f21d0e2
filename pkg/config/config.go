// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/stagecast/pkg/adapters/eventloop"
	"github.com/user/stagecast/pkg/adapters/fitsink"
	"github.com/user/stagecast/pkg/adapters/mp4container"
	"github.com/user/stagecast/pkg/adapters/osfilesystem"
	"github.com/user/stagecast/pkg/adapters/smartdecoder"
	"github.com/user/stagecast/pkg/bitstream"
	"github.com/user/stagecast/pkg/engine"
	"github.com/user/stagecast/pkg/media"
	"github.com/user/stagecast/pkg/playback"
	"github.com/user/stagecast/pkg/ports"
)

// Config represents the full configuration for stagecast.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Decoder  DecoderConfig  `yaml:"decoder"`
	Playback PlaybackConfig `yaml:"playback"`
	Media    MediaConfig    `yaml:"media"`

	Targets map[ports.Target]TargetConfig `yaml:"targets"`
}

// DecoderConfig selects the H.264 decoding backend.
type DecoderConfig struct {
	Backend      string `yaml:"backend"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	OpenH264Path string `yaml:"openh264_path"`
}

// PlaybackConfig tunes the playback loop.
type PlaybackConfig struct {
	// RestartPauseMs is the pause between passes. Negative disables it.
	RestartPauseMs int    `yaml:"restart_pause_ms"`
	InjectPolicy   string `yaml:"inject_policy"`
	QueueSize      int    `yaml:"queue_size"`
}

// MediaConfig controls how input files are classified.
type MediaConfig struct {
	ImageExtensions []string `yaml:"image_extensions"`
	VideoExtensions []string `yaml:"video_extensions"`
	Logo            string   `yaml:"logo"`
}

// TargetConfig is the screen geometry of one display target.
type TargetConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fit        string `yaml:"fit"`
	Background string `yaml:"background"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		LogLevel: "info",

		Decoder: DecoderConfig{
			Backend: string(smartdecoder.BackendAuto),
		},

		Playback: PlaybackConfig{
			RestartPauseMs: int(playback.DefaultRestartPause / time.Millisecond),
			InjectPolicy:   bitstream.InjectEveryIDR.String(),
			QueueSize:      eventloop.DefaultQueueSize,
		},

		Media: MediaConfig{
			ImageExtensions: append([]string(nil), media.DefaultImageExtensions...),
			VideoExtensions: append([]string(nil), media.DefaultVideoExtensions...),
		},

		Targets: map[ports.Target]TargetConfig{
			ports.TargetPreview: {Width: 640, Height: 360, Fit: "contain", Background: "#000000"},
			ports.TargetOutput:  {Width: 1920, Height: 1080, Fit: "contain", Background: "#000000"},
		},
	}
}

// LoadFromFile loads configuration from a YAML file over Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	return Parse(data)
}

// Parse decodes YAML data over Defaults and validates the result.
// Targets present in data are merged field by field with the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	defaults := cfg.Targets
	cfg.Targets = nil

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("parse config: %w", err)
	}

	cfg.Targets = mergeTargets(defaults, cfg.Targets)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mergeTargets(defaults, loaded map[ports.Target]TargetConfig) map[ports.Target]TargetConfig {
	out := make(map[ports.Target]TargetConfig, len(defaults))
	for t, d := range defaults {
		out[t] = d
	}
	for t, l := range loaded {
		d := out[t]
		if l.Width > 0 {
			d.Width = l.Width
		}
		if l.Height > 0 {
			d.Height = l.Height
		}
		if l.Fit != "" {
			d.Fit = l.Fit
		}
		if l.Background != "" {
			d.Background = l.Background
		}
		out[t] = d
	}
	return out
}

// Validate checks values that cannot be corrected silently.
func (c Config) Validate() error {
	if _, err := smartdecoder.ParseBackend(c.Decoder.Backend); err != nil {
		return fmt.Errorf("decoder.backend: %w", err)
	}
	switch c.Playback.InjectPolicy {
	case "", bitstream.InjectEveryIDR.String(), bitstream.InjectFirstSample.String():
	default:
		return fmt.Errorf("playback.inject_policy: unknown policy %q", c.Playback.InjectPolicy)
	}
	for t, tc := range c.Targets {
		if t != ports.TargetPreview && t != ports.TargetOutput {
			return fmt.Errorf("targets: unknown target %q", t)
		}
		if tc.Width <= 0 || tc.Height <= 0 {
			return fmt.Errorf("targets.%s: invalid size %dx%d", t, tc.Width, tc.Height)
		}
		if _, err := fitsink.ParseMode(tc.Fit); err != nil {
			return fmt.Errorf("targets.%s: %w", t, err)
		}
	}
	return nil
}

// ParseColor parses a #rrggbb or #rrggbbaa hex color string.
// Invalid values yield opaque black.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 && len(hex) != 8 {
		return color.Black
	}

	var v [4]uint8
	v[3] = 255
	for i := 0; i < len(hex)/2; i++ {
		hi, ok1 := hexValue(hex[2*i])
		lo, ok2 := hexValue(hex[2*i+1])
		if !ok1 || !ok2 {
			return color.Black
		}
		v[i] = hi<<4 | lo
	}

	return color.RGBA{R: v[0], G: v[1], B: v[2], A: v[3]}
}

func hexValue(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// Level returns the configured log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}

// DecoderOptions returns the options for smartdecoder.
func (c Config) DecoderOptions(log ports.Logger) (smartdecoder.Options, error) {
	backend, err := smartdecoder.ParseBackend(c.Decoder.Backend)
	if err != nil {
		return smartdecoder.Options{}, err
	}
	return smartdecoder.Options{
		Backend:     backend,
		FFmpegPath:  c.Decoder.FFmpegPath,
		LibraryPath: c.Decoder.OpenH264Path,
		Logger:      log,
	}, nil
}

// PlaybackOptions returns the playback loop options.
func (c Config) PlaybackOptions(log ports.Logger) playback.Options {
	pause := time.Duration(c.Playback.RestartPauseMs) * time.Millisecond
	if c.Playback.RestartPauseMs == 0 {
		// Zero in the file means no pause, unlike playback.Options.
		pause = -1
	}
	return playback.Options{
		RestartPause: pause,
		InjectPolicy: bitstream.ParseInjectPolicy(c.Playback.InjectPolicy),
		Logger:       log,
	}
}

// Screen returns the geometry of target.
func (c Config) Screen(target ports.Target) (width, height int, mode fitsink.Mode, bg color.Color) {
	tc, ok := c.Targets[target]
	if !ok {
		tc = Defaults().Targets[target]
	}
	mode, _ = fitsink.ParseMode(tc.Fit)
	return tc.Width, tc.Height, mode, ParseColor(tc.Background)
}

// ToEngineConfig converts Config to engine.Config backed by the MP4
// container reader, the smart decoder and the OS file system. The caller
// supplies the dispatcher.
func (c Config) ToEngineConfig(dispatcher ports.Dispatcher, log ports.Logger) (engine.Config, error) {
	decOpts, err := c.DecoderOptions(log.WithComponent("decoder"))
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		Reader:     mp4container.New(),
		Decoders:   smartdecoder.NewFactory(decOpts),
		Dispatcher: dispatcher,
		FileSystem: osfilesystem.New(),
		Classifier: media.NewClassifier(c.Media.ImageExtensions, c.Media.VideoExtensions),
		Playback:   c.PlaybackOptions(log),
		LogoPath:   c.Media.Logo,
		Logger:     log,
	}, nil
}
