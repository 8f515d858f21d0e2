// Package main provides the CLI entry point for stagecast.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/stagecast/pkg/adapters/eventloop"
	"github.com/user/stagecast/pkg/adapters/filesink"
	"github.com/user/stagecast/pkg/adapters/fitsink"
	"github.com/user/stagecast/pkg/adapters/ggrenderer"
	"github.com/user/stagecast/pkg/adapters/logger"
	"github.com/user/stagecast/pkg/adapters/nullsink"
	"github.com/user/stagecast/pkg/adapters/osfilesystem"
	"github.com/user/stagecast/pkg/config"
	"github.com/user/stagecast/pkg/engine"
	"github.com/user/stagecast/pkg/ports"
)

var version = "dev"

var errNoThumbnail = errors.New("no frame could be extracted")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "stagecast",
		Usage:   l10n.T("Play videos and still images on preview and output screens"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    l10n.T("Path to a YAML configuration file"),
				Category: l10n.T("Configuration"),
			},
			&cli.StringFlag{
				Name:     "decoder",
				Usage:    l10n.T("Decoder backend (auto, openh264, ffmpeg)"),
				Category: l10n.T("Configuration"),
			},
			&cli.StringFlag{
				Name:     "ffmpeg-path",
				Usage:    l10n.T("Path to the ffmpeg executable"),
				EnvVars:  []string{"FFMPEG_PATH"},
				Category: l10n.T("Configuration"),
			},
			&cli.StringFlag{
				Name:     "log-level",
				Aliases:  []string{"l"},
				Usage:    l10n.T("Log level (debug, info, warn, error)"),
				Category: l10n.T("Logging"),
			},
			&cli.BoolFlag{
				Name:     "quiet",
				Aliases:  []string{"Q"},
				Usage:    l10n.T("Suppress all log output"),
				Category: l10n.T("Logging"),
			},
		},
		Commands: []*cli.Command{
			playCommand(),
			thumbnailCommand(),
			probeCommand(),
		},
	}
}

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, ports.Logger, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("decoder") {
		cfg.Decoder.Backend = c.String("decoder")
	}
	if c.IsSet("ffmpeg-path") {
		cfg.Decoder.FFmpegPath = c.String("ffmpeg-path")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	level := cfg.Level()
	if c.Bool("quiet") {
		level = ports.LevelQuiet
	}
	return cfg, logger.New(level), nil
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Play a video or show an image on one or both targets"),
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Value:   "output",
				Usage:   l10n.T("Target screen (preview, output, both)"),
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   l10n.T("Stop after this duration (0 plays until interrupted)"),
			},
			&cli.IntFlag{
				Name:  "passes",
				Usage: l10n.T("Number of passes over the video (0 loops forever)"),
			},
			&cli.StringFlag{
				Name:     "frames-dir",
				Usage:    l10n.T("Directory to save delivered frames as PNG"),
				Category: l10n.T("Debug"),
			},
			&cli.IntFlag{
				Name:     "every",
				Value:    30,
				Usage:    l10n.T("Save every Nth delivered frame"),
				Category: l10n.T("Debug"),
			},
		},
		Action: runPlay,
	}
}

func runPlay(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New(l10n.T("A media file argument is required"))
	}
	targets, err := parseTargets(c.String("target"))
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	display := eventloop.New(cfg.Playback.QueueSize)
	display.Start()
	defer display.Close()

	ecfg, err := cfg.ToEngineConfig(display, log)
	if err != nil {
		return err
	}
	ecfg.Playback.Passes = c.Int("passes")
	eng := engine.New(ecfg)

	fs := osfilesystem.New()
	renderer := ggrenderer.NewFast()
	counters := make(map[ports.Target]*nullsink.Sink, len(targets))
	for _, t := range targets {
		counter := nullsink.New()
		counters[t] = counter
		sinks := []ports.FrameSink{counter}
		if dir := c.String("frames-dir"); dir != "" {
			width, height, mode, bg := cfg.Screen(t)
			dump := filesink.New(dir, string(t), c.Int("every"), fs, renderer, log)
			sinks = append(sinks, fitsink.New(width, height, mode, bg, renderer, dump))
		}
		if err := eng.SetSinks(t, sinks...); err != nil {
			return err
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx := sigCtx
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(sigCtx, d)
		defer cancel()
	}

	var g errgroup.Group
	for _, t := range targets {
		t := t
		g.Go(func() error {
			return eng.Play(t, path)
		})
	}
	if err := g.Wait(); err != nil {
		eng.Shutdown()
		return err
	}

	started := time.Now()
	waitPlayback(ctx, eng, targets, display)
	if sigCtx.Err() != nil {
		log.Warn("Interrupted, shutting down...")
	}

	for _, t := range targets {
		if stats, ok := eng.Session(t).Stats(); ok {
			log.Info("%s: %d passes, %d frames decoded, %d skipped, %d dropped",
				t, stats.Passes, stats.Frames, stats.Skipped, stats.Dropped)
		}
	}
	if err := eng.Shutdown(); err != nil {
		return err
	}
	for _, t := range targets {
		log.Info("%s: %d frames shown in %s", t, counters[t].Frames(), time.Since(started).Round(time.Millisecond))
	}
	return nil
}

// waitPlayback blocks until ctx is done or every running session has
// finished. Still images only wait for the display to show them.
func waitPlayback(ctx context.Context, eng *engine.Engine, targets []ports.Target, display *eventloop.Loop) {
	var done []<-chan struct{}
	for _, t := range targets {
		if s := eng.Session(t); s.Running() {
			done = append(done, s.Done())
		}
	}

	if len(done) == 0 {
		shown := make(chan struct{})
		if display.Invoke(func() { close(shown) }) == nil {
			select {
			case <-shown:
			case <-ctx.Done():
			}
		}
		return
	}

	for _, d := range done {
		select {
		case <-d:
		case <-ctx.Done():
			return
		}
	}
}

func parseTargets(s string) ([]ports.Target, error) {
	switch strings.ToLower(s) {
	case "both", "all":
		return engine.Targets, nil
	case string(ports.TargetPreview):
		return []ports.Target{ports.TargetPreview}, nil
	case string(ports.TargetOutput), "":
		return []ports.Target{ports.TargetOutput}, nil
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTarget, s)
}

func thumbnailCommand() *cli.Command {
	return &cli.Command{
		Name:      "thumbnail",
		Usage:     l10n.T("Extract a representative frame as an image"),
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    l10n.T("Output image path (.png or .jpg)"),
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: l10n.T("Scale the thumbnail to this width, keeping the aspect ratio"),
			},
		},
		Action: runThumbnail,
	}
}

func runThumbnail(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New(l10n.T("A media file argument is required"))
	}
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	ecfg, err := cfg.ToEngineConfig(nil, log)
	if err != nil {
		return err
	}
	eng := engine.New(ecfg)

	frame, ok := eng.Thumbnail(path)
	if !ok {
		return fmt.Errorf("%s: %w", path, errNoThumbnail)
	}

	renderer := ggrenderer.New()
	img := frame.Image()
	if w := c.Int("width"); w > 0 && w != frame.Width {
		h := frame.Height * w / frame.Width
		if h < 1 {
			h = 1
		}
		img = ports.FrameFromImage(renderer.ResizeImage(img, w, h)).Image()
	}

	out := c.String("output")
	format := ports.FormatPNG
	switch strings.ToLower(filepath.Ext(out)) {
	case ".jpg", ".jpeg":
		format = ports.FormatJPEG
	}
	data, err := renderer.EncodeImage(img, format, 90)
	if err != nil {
		return err
	}
	if err := osfilesystem.New().WriteFile(out, data); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}

	log.Info("Thumbnail saved to %s", out)
	return nil
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show the codec and track of a media file"),
		ArgsUsage: "<file>",
		Action:    runProbe,
	}
}

func runProbe(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New(l10n.T("A media file argument is required"))
	}
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	ecfg, err := cfg.ToEngineConfig(nil, log)
	if err != nil {
		return err
	}

	res, err := engine.New(ecfg).Probe(path)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, l10n.F("File: %s", res.Path))
	fmt.Fprintln(w, l10n.F("Kind: %s", res.Kind))
	if res.Codec != "" {
		fmt.Fprintln(w, l10n.F("Codec: %s", res.Codec))
	}
	fmt.Fprintln(w, l10n.F("Size: %dx%d", res.Width, res.Height))
	if !res.HasTrack {
		if res.Codec != "" {
			fmt.Fprintln(w, l10n.T("No playable H.264 track"))
		}
		return nil
	}

	track := res.Track
	fmt.Fprintln(w, l10n.F("Track ID: %d", track.TrackID))
	fmt.Fprintln(w, l10n.F("Samples: %d", track.SampleCount))
	fmt.Fprintln(w, l10n.F("Frame rate: %.3f fps", track.FrameRate))
	if track.FrameRate > 0 {
		d := time.Duration(float64(track.SampleCount) / track.FrameRate * float64(time.Second))
		fmt.Fprintln(w, l10n.F("Duration: %s", d.Round(time.Millisecond)))
	}
	fmt.Fprintln(w, l10n.F("Parameter sets: %d SPS, %d PPS", len(track.Config.SPS), len(track.Config.PPS)))
	return nil
}
