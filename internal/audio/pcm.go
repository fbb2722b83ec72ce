package audio

import (
	"slices"
	"time"
)

// PCM is a decoded block of normalized samples in [-1,1]. Multi-channel
// audio is interleaved.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (p PCM) Frames() int {
	if p.Channels <= 1 {
		return len(p.Samples)
	}
	return len(p.Samples) / p.Channels
}

// Duration of the buffer at its sample rate.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Mono reports whether the buffer holds a single channel.
func (p PCM) Mono() bool { return p.Channels <= 1 }

// Downmix averages interleaved channels into a mono buffer. Mono input is
// returned unchanged.
func Downmix(p PCM) PCM {
	if p.Mono() {
		return p
	}
	n := p.Frames()
	out := make([]float32, n)
	inv := 1 / float32(p.Channels)
	for i := 0; i < n; i++ {
		var sum float32
		base := i * p.Channels
		for c := 0; c < p.Channels; c++ {
			sum += p.Samples[base+c]
		}
		out[i] = sum * inv
	}
	return PCM{Samples: out, SampleRate: p.SampleRate, Channels: 1}
}

// ResampleLinear converts mono samples from one rate to another by linear
// interpolation. The result never aliases samples.
func ResampleLinear(samples []float32, inRate, outRate int) []float32 {
	switch {
	case len(samples) == 0:
		return nil
	case inRate <= 0 || outRate <= 0 || inRate == outRate:
		return slices.Clone(samples)
	}
	step := float64(inRate) / float64(outRate)
	out := make([]float32, max(1, len(samples)*outRate/inRate))
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}
	return out
}
