// Package pitch implements the McLeod Pitch Method for single analysis frames.
package pitch

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Estimate is the pitch of one frame. The zero value means no pitch.
type Estimate struct {
	Frequency float64 `json:"frequency"`
	Clarity   float64 `json:"clarity"`
	Lag       float64 `json:"lag"`
}

// None is the estimate reported for silent or unpitched frames.
var None = Estimate{}

// HasPitch reports whether a fundamental was found.
func (e Estimate) HasPitch() bool { return e.Frequency > 0 }

// Config tunes an MPM estimator.
type Config struct {
	// Cutoff is the fraction of the highest key maximum a peak must reach to
	// be selected.
	Cutoff float64
	// SilenceRMS is the frame RMS below which no pitch is reported.
	SilenceRMS float64
}

const (
	DefaultCutoff     = 0.93
	DefaultSilenceRMS = 0.01
)

// MPM estimates frame pitch. It holds no buffers and may be shared between
// goroutines.
type MPM struct {
	sampleRate float64
	cfg        Config
}

// New returns an estimator for audio sampled at sampleRate. Zero config
// fields take their defaults.
func New(sampleRate int, cfg Config) *MPM {
	if cfg.Cutoff <= 0 {
		cfg.Cutoff = DefaultCutoff
	}
	if cfg.SilenceRMS < 0 {
		cfg.SilenceRMS = 0
	}
	return &MPM{sampleRate: float64(sampleRate), cfg: cfg}
}

// Estimate runs MPM on one frame.
func (m *MPM) Estimate(frame []float64) Estimate {
	if len(frame) < 4 || m.sampleRate <= 0 {
		return None
	}
	energy := floats.Dot(frame, frame)
	if energy == 0 || math.Sqrt(energy/float64(len(frame))) < m.cfg.SilenceRMS {
		return None
	}

	nsdf := NSDF(frame)
	peak, ok := SelectPeak(KeyMaxima(nsdf), m.cfg.Cutoff)
	if !ok {
		return None
	}
	lag, _ := ParabolicPeak(nsdf, peak.Lag)
	if lag <= 0 {
		return None
	}
	return Estimate{
		Frequency: m.sampleRate / lag,
		Clarity:   math.Min(math.Max(peak.Value, 0), 1),
		Lag:       lag,
	}
}
