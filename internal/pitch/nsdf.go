package pitch

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// NSDF returns the normalized square difference function of frame for lags
// 0..len(frame)/2 inclusive:
//
//	n(τ) = 2·Σ x[j]·x[j+τ] / Σ (x[j]² + x[j+τ]²)
//
// summed over the overlap j = 0..W-1-τ. n(0) is 1 for any non-silent frame.
func NSDF(frame []float64) []float64 {
	w := len(frame)
	if w == 0 {
		return nil
	}
	maxLag := w / 2
	acf := autocorrelation(frame, maxLag)

	out := make([]float64, maxLag+1)
	var m float64
	for _, x := range frame {
		m += x * x
	}
	m *= 2
	for tau := 0; tau <= maxLag; tau++ {
		if tau > 0 {
			a, b := frame[tau-1], frame[w-tau]
			m -= a*a + b*b
		}
		if m > minEnergy {
			out[tau] = 2 * acf[tau] / m
		}
	}
	return out
}

// minEnergy guards the NSDF denominator against division by rounding noise.
const minEnergy = 1e-12

// autocorrelation computes r(τ) = Σ x[j]·x[j+τ] for τ = 0..maxLag using a
// zero-padded FFT, which avoids circular wrap-around.
func autocorrelation(frame []float64, maxLag int) []float64 {
	n := nextPow2(2 * len(frame))
	padded := make([]float64, n)
	copy(padded, frame)

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		spectrum[i] = c * cmplx.Conj(c)
	}
	inv := fft.IFFT(spectrum)

	r := make([]float64, maxLag+1)
	for tau := range r {
		r[tau] = real(inv[tau])
	}
	return r
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

// KeyMaximum is the highest NSDF point within one positive lobe.
type KeyMaximum struct {
	Lag   int
	Value float64
}

// KeyMaxima finds one maximum per positive region of nsdf after its first
// negative-going zero crossing; the trivial peak at lag 0 is never a
// candidate. Peaks at the final lag are skipped since they cannot be refined.
func KeyMaxima(nsdf []float64) []KeyMaximum {
	n := len(nsdf)
	pos := 0
	for pos < n-1 && nsdf[pos] > 0 {
		pos++
	}
	for pos < n-1 && nsdf[pos] <= 0 {
		pos++
	}
	if pos == 0 {
		pos = 1
	}

	var (
		maxima []KeyMaximum
		best   = -1
	)
	for pos < n-1 {
		if nsdf[pos] > nsdf[pos-1] && nsdf[pos] >= nsdf[pos+1] {
			if best < 0 || nsdf[pos] > nsdf[best] {
				best = pos
			}
		}
		pos++
		if pos < n-1 && nsdf[pos] <= 0 {
			if best > 0 {
				maxima = append(maxima, KeyMaximum{Lag: best, Value: nsdf[best]})
				best = -1
			}
			for pos < n-1 && nsdf[pos] <= 0 {
				pos++
			}
		}
	}
	if best > 0 {
		maxima = append(maxima, KeyMaximum{Lag: best, Value: nsdf[best]})
	}
	return maxima
}

// SelectPeak returns the first key maximum whose value reaches
// cutoff times the largest key maximum.
func SelectPeak(maxima []KeyMaximum, cutoff float64) (KeyMaximum, bool) {
	if len(maxima) == 0 {
		return KeyMaximum{}, false
	}
	highest := maxima[0].Value
	for _, k := range maxima[1:] {
		highest = max(highest, k.Value)
	}
	threshold := cutoff * highest
	for _, k := range maxima {
		if k.Value >= threshold {
			return k, true
		}
	}
	return KeyMaximum{}, false
}

// ParabolicPeak refines the peak at lag tau using the parabola through its
// two neighbours. It returns tau unchanged when the points are collinear or
// tau has no neighbour on both sides.
func ParabolicPeak(nsdf []float64, tau int) (lag, value float64) {
	if tau <= 0 || tau >= len(nsdf)-1 {
		return float64(tau), nsdf[tau]
	}
	a, b, c := nsdf[tau-1], nsdf[tau], nsdf[tau+1]
	den := a - 2*b + c
	if math.Abs(den) < 1e-15 {
		return float64(tau), b
	}
	delta := 0.5 * (a - c) / den
	return float64(tau) + delta, b - 0.25*(a-c)*delta
}
