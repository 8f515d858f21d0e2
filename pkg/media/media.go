// Package media classifies input files by extension and loads still images.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/user/stagecast/pkg/ports"
)

// ErrUnsupportedImage is returned when an image extension is recognized but
// no decoder is registered for its format.
var ErrUnsupportedImage = errors.New("media: unsupported image format")

// Kind is the type of a media file.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DefaultImageExtensions lists the still image extensions recognized by default.
var DefaultImageExtensions = []string{
	"avif", "bmp", "dds", "exr", "ff", "gif", "hdr", "ico", "jpeg", "jpg",
	"png", "pnm", "qoi", "tga", "tiff", "tif", "webp",
}

// DefaultVideoExtensions lists the video container extensions recognized by default.
var DefaultVideoExtensions = []string{
	"mov", "mp4", "m4a", "m4v", "m4b", "m4r", "m4p", "3gp", "3g2", "mj2", "qt",
}

// Classifier maps file extensions to media kinds. Matching is case-insensitive.
type Classifier struct {
	kinds map[string]Kind
}

// NewClassifier builds a classifier. Nil lists select the defaults.
// Extensions may be given with or without a leading dot.
func NewClassifier(images, videos []string) *Classifier {
	if images == nil {
		images = DefaultImageExtensions
	}
	if videos == nil {
		videos = DefaultVideoExtensions
	}
	c := &Classifier{kinds: make(map[string]Kind, len(images)+len(videos))}
	for _, ext := range images {
		c.kinds[normalize(ext)] = KindImage
	}
	for _, ext := range videos {
		c.kinds[normalize(ext)] = KindVideo
	}
	return c
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Classify returns the kind of path based on its extension.
func (c *Classifier) Classify(path string) Kind {
	return c.kinds[normalize(filepath.Ext(path))]
}

// IsImage reports whether path has a still image extension.
func (c *Classifier) IsImage(path string) bool {
	return c.Classify(path) == KindImage
}

// IsVideo reports whether path has a video extension.
func (c *Classifier) IsVideo(path string) bool {
	return c.Classify(path) == KindVideo
}

// DecodeImage decodes an image of any registered format into an RGB frame.
func DecodeImage(data []byte) (ports.Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return ports.Frame{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		return ports.Frame{}, fmt.Errorf("decode image: %w", err)
	}
	return ports.FrameFromImage(img), nil
}

// LoadImage reads and decodes the image at path.
func LoadImage(fs ports.FileSystem, path string) (ports.Frame, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return ports.Frame{}, fmt.Errorf("read image: %w", err)
	}
	frame, err := DecodeImage(data)
	if err != nil {
		return ports.Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}
