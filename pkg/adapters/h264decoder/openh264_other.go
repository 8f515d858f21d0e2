//go:build !darwin && !linux

package h264decoder

import "github.com/user/stagecast/pkg/ports"

// openh264Decoder is unavailable on this platform.
type openh264Decoder struct{}

func loadOpenH264(string) error {
	return ErrPlatformNotSupported
}

func newOpenH264(string) (*openh264Decoder, error) {
	return nil, ErrPlatformNotSupported
}

func (d *openh264Decoder) decode([]byte) (ports.Frame, bool, error) {
	return ports.Frame{}, false, ErrPlatformNotSupported
}

func (d *openh264Decoder) flush() ([]ports.Frame, error) { return nil, nil }

func (d *openh264Decoder) close() error { return nil }
