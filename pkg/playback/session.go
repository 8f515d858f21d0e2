package playback

import (
	"sync"

	"github.com/user/stagecast/pkg/ports"
)

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Reader     ports.ContainerReader
	Decoders   ports.DecoderFactory
	Dispatcher ports.Dispatcher
	Options    Options
}

// Session controls playback on one target. At most one loop runs per
// session; Start and Stop may be called from any goroutine.
type Session struct {
	target ports.Target
	cfg    SessionConfig
	log    ports.Logger

	mu   sync.Mutex
	run  *Run
	loop *Loop
	done chan struct{}
}

// NewSession creates an idle session for target.
func NewSession(target ports.Target, cfg SessionConfig) *Session {
	cfg.Options = cfg.Options.withDefaults()
	return &Session{
		target: target,
		cfg:    cfg,
		log:    cfg.Options.Logger.WithComponent("session:" + string(target)),
	}
}

// Target returns the session's target.
func (s *Session) Target() ports.Target {
	return s.target
}

// Start stops any running loop, opens path and starts playing it to sinks.
// Open failures are returned before a goroutine is started and leave the
// session idle.
func (s *Session) Start(path string, sinks []ports.FrameSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	stream, err := OpenStream(path, s.cfg.Reader, s.cfg.Decoders, s.cfg.Options.InjectPolicy)
	if err != nil {
		s.log.Debug("Open failed for %s: %v", path, err)
		return err
	}

	run := NewRun()
	loop := NewLoop(stream, sinks, s.cfg.Dispatcher, s.cfg.Options)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer stream.Close()
		loop.Run(run)
	}()

	s.run, s.loop, s.done = run, loop, done
	s.log.Debug("Started %s (run %s)", path, run.ID)
	return nil
}

// Stop cancels the running loop and waits for it to exit.
// It returns immediately when nothing is running.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.run == nil {
		return
	}
	s.run.Cancel()
	<-s.done
	s.log.Debug("Stopped run %s", s.run.ID)
	s.run, s.loop, s.done = nil, nil, nil
}

// Running reports whether a loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil && s.run.Active()
}

// Done returns a channel closed when the current loop exits, or nil when
// nothing was started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stats returns the counters of the current loop.
func (s *Session) Stats() (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil {
		return Stats{}, false
	}
	return s.loop.Stats(), true
}
