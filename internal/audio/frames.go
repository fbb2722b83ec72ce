package audio

import "iter"

// Frame is one analysis window. Samples past the end of the input are zero.
type Frame struct {
	Index   int
	Start   int
	Samples []float64
}

// Segmenter slices a sample sequence into fixed-length, possibly
// overlapping windows starting at 0, Hop, 2*Hop, ...
type Segmenter struct {
	Window int
	Hop    int
}

// Count returns how many frames Frames yields for n input samples.
func (s Segmenter) Count(n int) int {
	if s.Window <= 0 || s.Hop <= 0 || n <= 0 {
		return 0
	}
	return (n + s.Hop - 1) / s.Hop
}

// Frames returns a lazy sequence of frames over samples. A frame is emitted
// as long as its start index falls inside the input, so every frame holds at
// least one original sample. Ranging over the sequence again restarts it.
func (s Segmenter) Frames(samples []float32) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		if s.Window <= 0 || s.Hop <= 0 {
			return
		}
		for i, start := 0, 0; start < len(samples); i, start = i+1, start+s.Hop {
			buf := make([]float64, s.Window)
			end := min(start+s.Window, len(samples))
			for j, v := range samples[start:end] {
				buf[j] = float64(v)
			}
			if !yield(Frame{Index: i, Start: start, Samples: buf}) {
				return
			}
		}
	}
}
