//go:build darwin || linux

package h264decoder

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/user/stagecast/pkg/ports"
)

var (
	openh264Once    sync.Once
	openh264Handle  uintptr
	openh264InitErr error
)

// libopenh264 entry points
var (
	welsCreateDecoder  func(ppDecoder *uintptr) int32
	welsDestroyDecoder func(decoder uintptr)
)

// ISVCDecoderVtbl slots
const (
	vtblInitialize         = 0
	vtblUninitialize       = 1
	vtblDecodeFrameNoDelay = 3
	vtblFlushFrame         = 5
)

const (
	videoBitstreamAVC = 0
	errorConDisable   = 0
	bufferReady       = 1

	// maxFlushFrames bounds the pictures drained by a single flush.
	maxFlushFrames = 16
)

// decodingParam mirrors SDecodingParam.
type decodingParam struct {
	fileNameRestructed uintptr
	cpuLoad            uint32
	targetDqLayer      uint8
	ecActiveIdc        int32
	parseOnly          bool
	videoPropertySize  uint32
	videoBsType        int32
}

// bufferInfo mirrors SBufferInfo with its SSysMEMBuffer member.
type bufferInfo struct {
	bufferStatus    int32
	inBsTimeStamp   uint64
	outYuvTimeStamp uint64
	width           int32
	height          int32
	format          int32
	stride          [2]int32
	dst             [3]uintptr
}

// loadOpenH264 loads the library once per process. The first path wins.
func loadOpenH264(path string) error {
	openh264Once.Do(func() {
		openh264InitErr = loadOpenH264Lib(path)
	})
	return openh264InitErr
}

func loadOpenH264Lib(path string) error {
	var lastErr error
	for _, p := range openH264LibPaths(path) {
		handle, err := purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		openh264Handle = handle
		purego.RegisterLibFunc(&welsCreateDecoder, handle, "WelsCreateDecoder")
		purego.RegisterLibFunc(&welsDestroyDecoder, handle, "WelsDestroyDecoder")
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrOpenH264NotFound, lastErr)
	}
	return ErrOpenH264NotFound
}

func openH264LibPaths(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if env := os.Getenv("OPENH264_LIB_PATH"); env != "" {
		paths = append(paths, env)
	}

	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			"libopenh264.dylib",
			"/usr/local/lib/libopenh264.dylib",
			"/opt/homebrew/lib/libopenh264.dylib",
		)
	case "linux":
		paths = append(paths,
			"libopenh264.so",
			"libopenh264.so.7",
			"libopenh264.so.6",
			"/usr/local/lib/libopenh264.so",
			"/usr/lib/x86_64-linux-gnu/libopenh264.so.7",
			"/usr/lib/aarch64-linux-gnu/libopenh264.so.7",
		)
	}
	return paths
}

// openh264Decoder drives one ISVCDecoder instance.
type openh264Decoder struct {
	handle uintptr
}

func newOpenH264(path string) (*openh264Decoder, error) {
	if err := loadOpenH264(path); err != nil {
		return nil, err
	}

	var handle uintptr
	if rc := welsCreateDecoder(&handle); rc != 0 || handle == 0 {
		return nil, fmt.Errorf("%w: WelsCreateDecoder returned %d", ErrDecodeFailed, rc)
	}

	d := &openh264Decoder{handle: handle}
	param := decodingParam{
		targetDqLayer:     0xff,
		ecActiveIdc:       errorConDisable,
		videoPropertySize: 8,
		videoBsType:       videoBitstreamAVC,
	}
	if rc := d.call(vtblInitialize, uintptr(unsafe.Pointer(&param))); rc != 0 {
		runtime.KeepAlive(&param)
		welsDestroyDecoder(handle)
		return nil, fmt.Errorf("%w: Initialize returned %d", ErrDecodeFailed, rc)
	}
	runtime.KeepAlive(&param)
	return d, nil
}

// call invokes vtable slot i with the decoder as first argument.
func (d *openh264Decoder) call(slot int, args ...uintptr) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(d.handle))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	r1, _, _ := purego.SyscallN(fn, append([]uintptr{d.handle}, args...)...)
	return r1
}

func (d *openh264Decoder) decode(chunk []byte) (ports.Frame, bool, error) {
	var dst [3]uintptr
	var info bufferInfo
	state := d.call(vtblDecodeFrameNoDelay,
		uintptr(unsafe.Pointer(&chunk[0])),
		uintptr(len(chunk)),
		uintptr(unsafe.Pointer(&dst[0])),
		uintptr(unsafe.Pointer(&info)),
	)
	runtime.KeepAlive(chunk)

	if info.dst[0] == 0 {
		info.dst = dst
	}
	if info.bufferStatus == bufferReady {
		return info.frame(), true, nil
	}
	if int32(state) != 0 {
		return ports.Frame{}, false, fmt.Errorf("%w: decoding state 0x%x", ErrDecodeFailed, int32(state))
	}
	return ports.Frame{}, false, nil
}

func (d *openh264Decoder) flush() ([]ports.Frame, error) {
	var frames []ports.Frame
	for i := 0; i < maxFlushFrames; i++ {
		var dst [3]uintptr
		var info bufferInfo
		d.call(vtblFlushFrame,
			uintptr(unsafe.Pointer(&dst[0])),
			uintptr(unsafe.Pointer(&info)),
		)
		if info.bufferStatus != bufferReady {
			break
		}
		if info.dst[0] == 0 {
			info.dst = dst
		}
		frames = append(frames, info.frame())
	}
	return frames, nil
}

func (d *openh264Decoder) close() error {
	if d.handle == 0 {
		return nil
	}
	d.call(vtblUninitialize)
	welsDestroyDecoder(d.handle)
	d.handle = 0
	return nil
}

// frame copies the decoder-owned I420 planes into a new RGB frame.
// Older libraries only report the planes through the ppDst argument,
// which callers copy into dst beforehand.
func (b *bufferInfo) frame() ports.Frame {
	w, h := int(b.width), int(b.height)
	yStride, cStride := int(b.stride[0]), int(b.stride[1])
	ch := (h + 1) / 2
	return planes{
		width:   w,
		height:  h,
		y:       unsafe.Slice((*byte)(unsafe.Pointer(b.dst[0])), yStride*h),
		cb:      unsafe.Slice((*byte)(unsafe.Pointer(b.dst[1])), cStride*ch),
		cr:      unsafe.Slice((*byte)(unsafe.Pointer(b.dst[2])), cStride*ch),
		yStride: yStride,
		cStride: cStride,
	}.toFrame()
}
