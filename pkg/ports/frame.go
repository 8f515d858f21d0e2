package ports

import (
	"image"
	"image/draw"
)

// Frame is a decoded RGB raster handed from the decoder to display sinks.
// Pix holds Width*Height*3 bytes in R, G, B order without row padding.
type Frame struct {
	Width  int
	Height int
	Pix    []byte

	// SampleIndex is the 1-based container sample that completed this frame,
	// or 0 when unknown (still images, flushed frames).
	SampleIndex uint32
}

// NewFrame allocates a black frame of the given dimensions.
func NewFrame(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*3),
	}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*3
}

// Clone returns a copy of the frame with its own pixel buffer.
func (f Frame) Clone() Frame {
	c := f
	c.Pix = append([]byte(nil), f.Pix...)
	return c
}

// Image returns an opaque RGBA copy of the frame.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Empty() {
		return img
	}
	src := 0
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = f.Pix[src]
		img.Pix[i+1] = f.Pix[src+1]
		img.Pix[i+2] = f.Pix[src+2]
		img.Pix[i+3] = 0xff
		src += 3
	}
	return img
}

// FrameFromImage converts any image into a freshly allocated RGB frame.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	f := NewFrame(b.Dx(), b.Dy())
	dst := 0
	for i := 0; i < len(rgba.Pix); i += 4 {
		f.Pix[dst] = rgba.Pix[i]
		f.Pix[dst+1] = rgba.Pix[i+1]
		f.Pix[dst+2] = rgba.Pix[i+2]
		dst += 3
	}
	return f
}
