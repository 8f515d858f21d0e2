// Package engine coordinates playback on the preview and output targets.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/stagecast/pkg/adapters/logger"
	"github.com/user/stagecast/pkg/media"
	"github.com/user/stagecast/pkg/playback"
	"github.com/user/stagecast/pkg/ports"
)

var (
	// ErrUnknownTarget is returned for a target the engine does not drive.
	ErrUnknownTarget = errors.New("engine: unknown target")

	// ErrNoLogo is returned by ShowLogo when no logo is configured.
	ErrNoLogo = errors.New("engine: no logo configured")

	// ErrUnsupportedMedia is returned for files that are neither a known
	// image nor a known video.
	ErrUnsupportedMedia = errors.New("engine: unsupported media")
)

// Targets lists the targets driven by the engine.
var Targets = []ports.Target{ports.TargetPreview, ports.TargetOutput}

// Config contains everything the engine needs.
type Config struct {
	Reader     ports.ContainerReader
	Decoders   ports.DecoderFactory
	Dispatcher ports.Dispatcher
	FileSystem ports.FileSystem

	// Classifier decides between the still-image and video paths.
	// Nil uses the default extension lists.
	Classifier *media.Classifier

	Playback playback.Options

	// LogoPath is played on the output target by ShowLogo.
	LogoPath string

	Logger ports.Logger
}

// Engine owns one playback session per target.
type Engine struct {
	cfg        Config
	log        ports.Logger
	classifier *media.Classifier
	thumbs     *playback.Thumbnailer
	sessions   map[ports.Target]*playback.Session

	mu    sync.RWMutex
	sinks map[ports.Target][]ports.FrameSink
}

// New creates an Engine with idle sessions for every target.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoop()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = media.NewClassifier(nil, nil)
	}
	if cfg.Playback.Logger == nil {
		cfg.Playback.Logger = cfg.Logger
	}

	e := &Engine{
		cfg:        cfg,
		log:        cfg.Logger.WithComponent("engine"),
		classifier: cfg.Classifier,
		thumbs:     playback.NewThumbnailer(cfg.Reader, cfg.Decoders, cfg.Playback.InjectPolicy, cfg.Logger),
		sessions:   make(map[ports.Target]*playback.Session, len(Targets)),
		sinks:      make(map[ports.Target][]ports.FrameSink, len(Targets)),
	}
	for _, t := range Targets {
		e.sessions[t] = playback.NewSession(t, playback.SessionConfig{
			Reader:     cfg.Reader,
			Decoders:   cfg.Decoders,
			Dispatcher: cfg.Dispatcher,
			Options:    cfg.Playback,
		})
	}
	return e
}

// SetSinks replaces the sinks of target. It applies to the next Play.
func (e *Engine) SetSinks(target ports.Target, sinks ...ports.FrameSink) error {
	if _, ok := e.sessions[target]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	e.mu.Lock()
	e.sinks[target] = sinks
	e.mu.Unlock()
	return nil
}

func (e *Engine) sinksFor(target ports.Target) []ports.FrameSink {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sinks[target]
}

// Session returns the session driving target, or nil.
func (e *Engine) Session(target ports.Target) *playback.Session {
	return e.sessions[target]
}

// Play shows path on target. Images are decoded once and delivered
// directly; videos start a looping playback session. Any playback already
// running on target is stopped first.
func (e *Engine) Play(target ports.Target, path string) error {
	session, ok := e.sessions[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	sinks := e.sinksFor(target)

	switch e.classifier.Classify(path) {
	case media.KindImage:
		session.Stop()
		if err := e.showImage(path, sinks); err != nil {
			e.log.Error("Failed to show image %s: %v", path, err)
			return err
		}
		e.log.Info("Showing image %s on %s", path, target)
		return nil
	case media.KindVideo:
		if err := session.Start(path, sinks); err != nil {
			e.log.Error("Failed to play %s: %v", path, err)
			return err
		}
		e.log.Info("Playing %s on %s", path, target)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMedia, path)
	}
}

func (e *Engine) showImage(path string, sinks []ports.FrameSink) error {
	frame, err := media.LoadImage(e.cfg.FileSystem, path)
	if err != nil {
		return err
	}
	deliver := func() {
		ports.DeliverAll(sinks, frame)
	}
	if e.cfg.Dispatcher == nil {
		deliver()
		return nil
	}
	if err := e.cfg.Dispatcher.Invoke(deliver); err != nil {
		return fmt.Errorf("deliver image: %w", err)
	}
	return nil
}

// Stop stops playback on target.
func (e *Engine) Stop(target ports.Target) error {
	session, ok := e.sessions[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	session.Stop()
	return nil
}

// ShowLogo plays the configured logo on the output target.
func (e *Engine) ShowLogo() error {
	if e.cfg.LogoPath == "" {
		e.log.Error("No logo configured")
		return ErrNoLogo
	}
	return e.Play(ports.TargetOutput, e.cfg.LogoPath)
}

// Thumbnail returns a representative frame for path.
func (e *Engine) Thumbnail(path string) (ports.Frame, bool) {
	if e.classifier.IsImage(path) {
		frame, err := media.LoadImage(e.cfg.FileSystem, path)
		if err != nil {
			e.log.Warn("No thumbnail for %s: %v", path, err)
			return ports.Frame{}, false
		}
		return frame, true
	}
	return e.thumbs.Extract(path)
}

// Shutdown stops every target concurrently and waits for their loops.
func (e *Engine) Shutdown() error {
	var g errgroup.Group
	for _, t := range Targets {
		t := t
		g.Go(func() error {
			return e.Stop(t)
		})
	}
	err := g.Wait()
	e.log.Debug("All targets stopped")
	return err
}
