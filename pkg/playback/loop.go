package playback

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/user/stagecast/pkg/adapters/logger"
	"github.com/user/stagecast/pkg/bitstream"
	"github.com/user/stagecast/pkg/ports"
)

const (
	// DefaultRestartPause separates two passes over the track.
	DefaultRestartPause = 16 * time.Millisecond

	// defaultFrameRate is used when a track reports no frame rate.
	defaultFrameRate = 30.0
)

// Options configures playback.
type Options struct {
	// RestartPause is the pause after a pass before the next one starts.
	// Zero means DefaultRestartPause; a negative value disables the pause.
	RestartPause time.Duration

	// InjectPolicy controls SPS/PPS injection by the bitstream converter.
	InjectPolicy bitstream.InjectPolicy

	// Passes limits the number of passes over the track. Zero loops until stopped.
	Passes int

	Logger ports.Logger
}

func (o Options) withDefaults() Options {
	if o.RestartPause == 0 {
		o.RestartPause = DefaultRestartPause
	}
	if o.RestartPause < 0 {
		o.RestartPause = 0
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	return o
}

// State is the playback loop state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCancelled
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Run is the cancellation state shared by one playback run and its controller.
type Run struct {
	ID string

	active atomic.Bool
	cancel chan struct{}
	once   sync.Once
}

// NewRun creates an active run with a fresh identifier.
func NewRun() *Run {
	r := &Run{
		ID:     uuid.NewString(),
		cancel: make(chan struct{}),
	}
	r.active.Store(true)
	return r
}

// Active reports whether the run has not been cancelled.
func (r *Run) Active() bool {
	return r.active.Load()
}

// Cancel clears the flag and wakes a sleeping loop. Safe to call repeatedly.
func (r *Run) Cancel() {
	r.active.Store(false)
	r.once.Do(func() { close(r.cancel) })
}

// Stats counts loop activity.
type Stats struct {
	Passes     uint64
	Samples    uint64
	Frames     uint64
	Skipped    uint64
	Dropped    uint64
	Dispatched uint64
}

// Loop plays a stream to a set of sinks at the track's frame rate.
type Loop struct {
	stream     *Stream
	sinks      []ports.FrameSink
	dispatcher ports.Dispatcher
	opts       Options
	log        ports.Logger
	wait       time.Duration

	state atomic.Int32

	passes     atomic.Uint64
	samples    atomic.Uint64
	frames     atomic.Uint64
	skipped    atomic.Uint64
	dropped    atomic.Uint64
	dispatched atomic.Uint64
}

// NewLoop creates a loop over stream. A nil dispatcher delivers frames on
// the loop goroutine.
func NewLoop(stream *Stream, sinks []ports.FrameSink, dispatcher ports.Dispatcher, opts Options) *Loop {
	opts = opts.withDefaults()

	fps := stream.track.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}

	return &Loop{
		stream:     stream,
		sinks:      append([]ports.FrameSink(nil), sinks...),
		dispatcher: dispatcher,
		opts:       opts,
		log:        opts.Logger.WithComponent("playback"),
		wait:       time.Duration(float64(time.Second) / fps),
	}
}

// FrameInterval returns the time budget of one frame.
func (l *Loop) FrameInterval() time.Duration {
	return l.wait
}

// State returns the current loop state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Passes:     l.passes.Load(),
		Samples:    l.samples.Load(),
		Frames:     l.frames.Load(),
		Skipped:    l.skipped.Load(),
		Dropped:    l.dropped.Load(),
		Dispatched: l.dispatched.Load(),
	}
}

// Run plays until run is cancelled or the configured passes are done.
// The run is cancelled on return and the stream is left open.
func (l *Loop) Run(run *Run) {
	l.state.Store(int32(StateRunning))
	defer func() {
		run.Cancel()
		l.state.Store(int32(StateIdle))
	}()

	l.log.Debug("Run %s: %dx%d, %d samples, frame interval %s",
		run.ID, l.stream.track.Width, l.stream.track.Height, l.stream.track.SampleCount, l.wait)

	for pass := 1; ; pass++ {
		if !l.playPass(run) {
			l.state.Store(int32(StateCancelled))
			l.log.Debug("Run %s: cancelled during pass %d", run.ID, pass)
			return
		}
		l.passes.Add(1)
		l.state.Store(int32(StateExhausted))

		if l.opts.Passes > 0 && pass >= l.opts.Passes {
			return
		}
		if !l.sleepUntil(run, time.Now().Add(l.opts.RestartPause)) {
			l.state.Store(int32(StateCancelled))
			return
		}
		l.state.Store(int32(StateRunning))
	}
}

// playPass plays every sample once and flushes the decoder.
// It returns false when the run was cancelled.
func (l *Loop) playPass(run *Run) bool {
	l.stream.rewind()
	passStart := time.Now()
	frameCount := 0

	deliver := func(frame ports.Frame) bool {
		l.dispatch(run, frame)
		frameCount++
		return l.sleepUntil(run, passStart.Add(l.wait*time.Duration(frameCount)))
	}

	for index := uint32(1); index <= l.stream.track.SampleCount; index++ {
		if !run.Active() {
			return false
		}

		frame, ok, err := l.stream.decodeSample(index)
		l.samples.Add(1)
		if errors.Is(err, errEndOfTrack) {
			break
		}
		if err != nil {
			l.skipped.Add(1)
			l.log.Debug("Run %s: skipping sample: %v", run.ID, err)
			continue
		}
		if !ok {
			continue
		}
		if !deliver(frame) {
			return false
		}
	}

	if !run.Active() {
		return false
	}

	frames, err := l.stream.flush()
	if err != nil {
		l.log.Warn("Run %s: %v", run.ID, err)
	}
	for _, frame := range frames {
		if !deliver(frame) {
			return false
		}
	}
	return run.Active()
}

// dispatch hands frame to the sinks on the display context. The sinks only
// see it if the run is still active when the marshalled call executes.
func (l *Loop) dispatch(run *Run, frame ports.Frame) {
	l.frames.Add(1)
	if len(l.sinks) == 0 {
		return
	}

	sinks := l.sinks
	deliver := func() {
		if !run.Active() {
			return
		}
		ports.DeliverAll(sinks, frame)
		l.dispatched.Add(1)
	}

	if l.dispatcher == nil {
		deliver()
		return
	}
	if err := l.dispatcher.Invoke(deliver); err != nil {
		l.dropped.Add(1)
		l.log.Debug("Run %s: frame from sample %d dropped: %v", run.ID, frame.SampleIndex, err)
	}
}

// sleepUntil blocks until deadline or cancellation. It returns false when
// the run was cancelled.
func (l *Loop) sleepUntil(run *Run, deadline time.Time) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return run.Active()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return run.Active()
	case <-run.cancel:
		return false
	}
}
