package playback

import (
	"github.com/user/stagecast/pkg/mocks"
	"github.com/user/stagecast/pkg/mp4fixture"
	"github.com/user/stagecast/pkg/ports"
)

// gop returns count AVCC samples: one IDR followed by non-IDR slices.
func gop(count int) [][]byte {
	samples := make([][]byte, count)
	for i, s := range mp4fixture.GOP(count) {
		samples[i] = s.Data
	}
	return samples
}

// fixture registers a mock container at path and returns it with a reader.
func fixture(path string, fps float64, samples [][]byte) (*mocks.ContainerReader, *mocks.Container) {
	reader := mocks.NewContainerReader()
	c := mocks.NewContainer(fps, samples...)
	reader.Add(path, c)
	return reader, c
}

func indices(frames []ports.Frame) []uint32 {
	out := make([]uint32, len(frames))
	for i, f := range frames {
		out[i] = f.SampleIndex
	}
	return out
}
