package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/user/stagecast/pkg/mocks"
)

func TestClassifier_Defaults(t *testing.T) {
	c := NewClassifier(nil, nil)

	tests := []struct {
		path string
		want Kind
	}{
		{"background.mp4", KindVideo},
		{"/media/Intro.MOV", KindVideo},
		{"clip.m4v", KindVideo},
		{"logo.PNG", KindImage},
		{"slide.jpeg", KindImage},
		{"scan.tif", KindImage},
		{"photo.webp", KindImage},
		{"song.txt", KindUnknown},
		{"noext", KindUnknown},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.path); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestClassifier_Override(t *testing.T) {
	c := NewClassifier([]string{".PNG"}, []string{"mkv"})

	if !c.IsImage("a.png") {
		t.Error("a.png should be an image")
	}
	if c.IsImage("a.jpg") {
		t.Error("a.jpg should not be recognized with a custom image list")
	}
	if !c.IsVideo("a.MKV") {
		t.Error("a.MKV should be a video")
	}
	if c.IsVideo("a.mp4") {
		t.Error("a.mp4 should not be recognized with a custom video list")
	}
}

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(2, 1, color.RGBA{B: 255, A: 255})
	return img
}

func TestLoadImage(t *testing.T) {
	var pngData, bmpData bytes.Buffer
	if err := png.Encode(&pngData, testImage()); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpData, testImage()); err != nil {
		t.Fatal(err)
	}

	fs := mocks.NewFileSystem()
	fs.WriteFile("slide.png", pngData.Bytes())
	fs.WriteFile("slide.bmp", bmpData.Bytes())

	for _, path := range []string{"slide.png", "slide.bmp"} {
		frame, err := LoadImage(fs, path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", path, err)
		}
		if frame.Width != 3 || frame.Height != 2 {
			t.Errorf("%s: size = %dx%d, want 3x2", path, frame.Width, frame.Height)
		}
		if frame.Pix[0] != 255 || frame.Pix[1] != 0 {
			t.Errorf("%s: first pixel = %v, want red", path, frame.Pix[:3])
		}
		last := frame.Pix[len(frame.Pix)-3:]
		if last[2] != 255 || last[0] != 0 {
			t.Errorf("%s: last pixel = %v, want blue", path, last)
		}
	}
}

func TestLoadImage_Errors(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("fake.png", []byte("not an image"))

	if _, err := LoadImage(fs, "missing.png"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadImage(fs, "fake.png"); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("error = %v, want ErrUnsupportedImage", err)
	}
}
