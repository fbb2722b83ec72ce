package audio

import (
	"math"
	"time"
)

// Tone is a sine segment. A zero Frequency renders silence.
type Tone struct {
	Frequency float64
	Duration  time.Duration
	Amplitude float64
}

// RenderOptions control how a tone sequence is rendered.
type RenderOptions struct {
	SampleRate int
	Gap        time.Duration // silence inserted between tones
	Ramp       time.Duration // linear attack/release at each tone edge
}

// Render synthesizes tones back to back into mono PCM. Each tone gets a short
// linear fade-in/out so that its onset is a clean amplitude rise.
func Render(tones []Tone, opts RenderOptions) PCM {
	sr := opts.SampleRate
	if sr <= 0 {
		sr = 44100
	}
	gap := samplesFor(opts.Gap, sr)
	ramp := samplesFor(opts.Ramp, sr)

	var out []float32
	for i, t := range tones {
		if i > 0 && gap > 0 {
			out = append(out, make([]float32, gap)...)
		}
		n := samplesFor(t.Duration, sr)
		amp := t.Amplitude
		if amp == 0 {
			amp = 0.5
		}
		r := min(ramp, n/2)
		for j := 0; j < n; j++ {
			if t.Frequency <= 0 {
				out = append(out, 0)
				continue
			}
			env := 1.0
			if r > 0 {
				switch {
				case j < r:
					env = float64(j) / float64(r)
				case j >= n-r:
					env = float64(n-1-j) / float64(r)
				}
			}
			v := amp * env * math.Sin(2*math.Pi*t.Frequency*float64(j)/float64(sr))
			out = append(out, float32(v))
		}
	}
	return PCM{Samples: out, SampleRate: sr, Channels: 1}
}

func samplesFor(d time.Duration, sampleRate int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}
