// Package fitsink renders delivered frames into a fixed screen geometry.
package fitsink

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/user/stagecast/pkg/ports"
)

// Mode selects how a frame is placed on the screen.
type Mode int

const (
	// Contain scales the frame to fit entirely inside the screen,
	// letterboxing the remainder with the background colour.
	Contain Mode = iota
	// Fill stretches the frame to the screen, ignoring aspect ratio.
	Fill
	// Cover scales the frame to cover the screen and crops the overflow.
	Cover
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Fill:
		return "fill"
	case Cover:
		return "cover"
	default:
		return "contain"
	}
}

// ParseMode parses a fit mode name. An empty string means Contain.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contain":
		return Contain, nil
	case "fill":
		return Fill, nil
	case "cover":
		return Cover, nil
	default:
		return Contain, fmt.Errorf("unknown fit mode %q", s)
	}
}

// Fit computes the destination rectangle for a src-sized frame on a
// dst-sized screen. The rectangle may extend past the screen for Cover.
func Fit(mode Mode, src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return image.Rectangle{}
	}
	if mode == Fill {
		return image.Rect(0, 0, dst.X, dst.Y)
	}

	// Compare src.X/src.Y against dst.X/dst.Y without floating point.
	wider := src.X*dst.Y > dst.X*src.Y

	var w, h int
	if wider == (mode == Contain) {
		w = dst.X
		h = src.Y * dst.X / src.X
	} else {
		h = dst.Y
		w = src.X * dst.Y / src.Y
	}

	x := (dst.X - w) / 2
	y := (dst.Y - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// Sink places every frame on a width x height canvas and forwards the
// composed frame to the next sink.
type Sink struct {
	width      int
	height     int
	mode       Mode
	background color.Color
	renderer   ports.Renderer
	next       ports.FrameSink
}

// New creates a Sink. A nil background means opaque black.
func New(width, height int, mode Mode, background color.Color, renderer ports.Renderer, next ports.FrameSink) *Sink {
	if background == nil {
		background = color.Black
	}
	return &Sink{
		width:      width,
		height:     height,
		mode:       mode,
		background: background,
		renderer:   renderer,
		next:       next,
	}
}

// Deliver implements ports.FrameSink.
func (s *Sink) Deliver(frame ports.Frame) {
	if frame.Empty() {
		return
	}
	if frame.Width == s.width && frame.Height == s.height {
		s.next.Deliver(frame)
		return
	}

	canvas := s.renderer.CreateCanvas(s.width, s.height, s.background)
	r := Fit(s.mode, image.Pt(frame.Width, frame.Height), image.Pt(s.width, s.height))
	canvas.DrawImageScaled(frame.Image(), r.Min.X, r.Min.Y, r.Dx(), r.Dy())

	out := ports.FrameFromImage(canvas.ToImage())
	out.SampleIndex = frame.SampleIndex
	s.next.Deliver(out)
}

var _ ports.FrameSink = (*Sink)(nil)
