package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s Segmenter, samples []float32) []Frame {
	var frames []Frame
	for f := range s.Frames(samples) {
		frames = append(frames, f)
	}
	return frames
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

func TestFramesCount(t *testing.T) {
	tests := []struct {
		name   string
		window int
		hop    int
		n      int
		want   int
	}{
		{"empty", 4, 2, 0, 0},
		{"exact non-overlapping", 4, 4, 16, 4},
		{"padded tail", 4, 4, 10, 3},
		{"half overlap", 4, 2, 10, 5},
		{"shorter than window", 8, 4, 3, 1},
		{"hop of one", 3, 1, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Segmenter{Window: tt.window, Hop: tt.hop}
			frames := collect(s, ramp(tt.n))
			assert.Len(t, frames, tt.want)
			assert.Equal(t, tt.want, s.Count(tt.n))
		})
	}
}

func TestFramesStartIndicesAndWidth(t *testing.T) {
	s := Segmenter{Window: 4, Hop: 2}
	frames := collect(s, ramp(9))

	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, i*2, f.Start)
		assert.Len(t, f.Samples, 4)
	}
}

func TestFramesOverlapIsConsistent(t *testing.T) {
	s := Segmenter{Window: 6, Hop: 3}
	frames := collect(s, ramp(30))

	for i := 1; i < len(frames); i++ {
		assert.Equal(t, frames[i-1].Samples[3:], frames[i].Samples[:3])
	}
}

func TestFramesZeroPadTail(t *testing.T) {
	s := Segmenter{Window: 4, Hop: 4}
	frames := collect(s, ramp(6))

	require.Len(t, frames, 2)
	assert.Equal(t, []float64{5, 6, 0, 0}, frames[1].Samples)
}

func TestFramesRestartable(t *testing.T) {
	s := Segmenter{Window: 4, Hop: 2}
	seq := s.Frames(ramp(10))

	var first, second []int
	for f := range seq {
		first = append(first, f.Start)
	}
	for f := range seq {
		second = append(second, f.Start)
	}
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestFramesStopEarly(t *testing.T) {
	s := Segmenter{Window: 4, Hop: 1}
	n := 0
	for range s.Frames(ramp(100)) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestFramesInvalidSegmenterYieldsNothing(t *testing.T) {
	assert.Empty(t, collect(Segmenter{Window: 0, Hop: 1}, ramp(10)))
	assert.Empty(t, collect(Segmenter{Window: 4, Hop: 0}, ramp(10)))
}

func TestFramesDoNotAliasInput(t *testing.T) {
	in := ramp(8)
	s := Segmenter{Window: 4, Hop: 4}
	for f := range s.Frames(in) {
		f.Samples[0] = -1
	}
	assert.Equal(t, float32(1), in[0])
}
