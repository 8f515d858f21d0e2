package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ideamans/go-l10n"

	"github.com/user/stagecast/pkg/engine"
	"github.com/user/stagecast/pkg/mp4fixture"
	"github.com/user/stagecast/pkg/ports"
)

func forceEnglish(t *testing.T) {
	t.Helper()
	l10n.ForceLanguage("en")
	t.Cleanup(l10n.ResetLanguage)
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		in   string
		want []ports.Target
	}{
		{"", []ports.Target{ports.TargetOutput}},
		{"output", []ports.Target{ports.TargetOutput}},
		{"Preview", []ports.Target{ports.TargetPreview}},
		{"both", []ports.Target{ports.TargetPreview, ports.TargetOutput}},
	}
	for _, tt := range tests {
		got, err := parseTargets(tt.in)
		if err != nil {
			t.Errorf("parseTargets(%q) error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseTargets(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseTargets("projector"); !errors.Is(err, engine.ErrUnknownTarget) {
		t.Errorf("parseTargets(projector) error = %v", err)
	}
}

func TestApp_Commands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"play", "thumbnail", "probe"} {
		if app.Command(name) == nil {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestApp_RequiresFile(t *testing.T) {
	for _, args := range [][]string{
		{"stagecast", "play"},
		{"stagecast", "probe"},
		{"stagecast", "thumbnail", "-o", "out.png"},
	} {
		if err := newApp().Run(args); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestProbe_PrintsTrack(t *testing.T) {
	forceEnglish(t)
	path, err := mp4fixture.WriteProgressive(t.TempDir(), "clip.mp4", mp4fixture.Options{
		Width:   320,
		Height:  240,
		FPS:     25,
		Samples: mp4fixture.GOP(10),
	})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run([]string{"stagecast", "-Q", "probe", path}); err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"File: " + path,
		"Kind: video",
		"Size: 320x240",
		"Track ID: 1",
		"Samples: 10",
		"Frame rate: 25.000 fps",
		"Duration: 400ms",
		"Parameter sets: 1 SPS, 1 PPS",
	} {
		if !strings.Contains(got, want+"\n") {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestProbe_UnsupportedFile(t *testing.T) {
	forceEnglish(t)
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	err := newApp().Run([]string{"stagecast", "-Q", "probe", path})
	if !errors.Is(err, engine.ErrUnsupportedMedia) {
		t.Errorf("error = %v, want ErrUnsupportedMedia", err)
	}
}

func TestThumbnail_StillImageResized(t *testing.T) {
	forceEnglish(t)
	dir := t.TempDir()

	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	src.SetRGBA(0, 0, color.RGBA{A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "still.png")
	if err := os.WriteFile(in, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "thumb.png")
	args := []string{"stagecast", "-Q", "thumbnail", "-o", out, "--width", "4", in}
	if err := newApp().Run(args); err != nil {
		t.Fatalf("thumbnail failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("thumbnail size = %dx%d, want 4x2", b.Dx(), b.Dy())
	}
}
