package ports

// Target identifies a display destination.
type Target string

const (
	// TargetPreview is the operator's preview pane.
	TargetPreview Target = "preview"
	// TargetOutput is the program output shown to the audience.
	TargetOutput Target = "output"
)

// FrameSink receives decoded frames on the display context.
// Deliver is only ever called from the Dispatcher's goroutine. The sink owns
// the frame it is given; no other sink sees the same Pix buffer.
type FrameSink interface {
	Deliver(frame Frame)
}

// DeliverAll hands frame to every sink. All but the last sink receive a
// clone, so each owns its pixels.
func DeliverAll(sinks []FrameSink, frame Frame) {
	for i, s := range sinks {
		if i == len(sinks)-1 {
			s.Deliver(frame)
			return
		}
		s.Deliver(frame.Clone())
	}
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(frame Frame)

// Deliver implements FrameSink.
func (f FrameSinkFunc) Deliver(frame Frame) {
	f(frame)
}

// Dispatcher marshals work onto the display context.
type Dispatcher interface {
	// Invoke schedules fn on the display context and returns immediately.
	// It fails when the display context is closed or cannot accept more work.
	Invoke(fn func()) error
}
