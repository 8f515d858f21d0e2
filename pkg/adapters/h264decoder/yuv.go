package h264decoder

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/user/stagecast/pkg/ports"
)

// planes describes an I420 picture owned by a decoder.
type planes struct {
	width, height int
	y, cb, cr     []byte
	yStride       int
	cStride       int
}

// toFrame converts the picture into a freshly allocated RGB frame.
func (p planes) toFrame() ports.Frame {
	ycc := image.NewYCbCr(image.Rect(0, 0, p.width, p.height), image.YCbCrSubsampleRatio420)
	cw, ch := (p.width+1)/2, (p.height+1)/2
	for row := 0; row < p.height; row++ {
		copy(ycc.Y[row*ycc.YStride:row*ycc.YStride+p.width], p.y[row*p.yStride:])
	}
	for row := 0; row < ch; row++ {
		copy(ycc.Cb[row*ycc.CStride:row*ycc.CStride+cw], p.cb[row*p.cStride:])
		copy(ycc.Cr[row*ycc.CStride:row*ycc.CStride+cw], p.cr[row*p.cStride:])
	}

	rgba := image.NewRGBA(ycc.Bounds())
	draw.Copy(rgba, image.Point{}, ycc, ycc.Bounds(), draw.Src, nil)
	return ports.FrameFromImage(rgba)
}
