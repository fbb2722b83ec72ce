package notes

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/obiente/translate/goscore/internal/pitch"
)

// Candidate is a run of pitch-consistent frames that may become a Note.
type Candidate struct {
	// Start is the first sample of the first member frame.
	Start int
	// End is one hop past the start of the last member frame.
	End int

	freqs     []float64 // sorted
	clarities []float64
}

func newCandidate(start, hop int, est pitch.Estimate) *Candidate {
	c := &Candidate{Start: start}
	c.add(start, hop, est)
	return c
}

func (c *Candidate) add(start, hop int, est pitch.Estimate) {
	i, _ := slices.BinarySearch(c.freqs, est.Frequency)
	c.freqs = slices.Insert(c.freqs, i, est.Frequency)
	c.clarities = append(c.clarities, est.Clarity)
	c.End = start + hop
}

// Frames is the number of member frames.
func (c *Candidate) Frames() int { return len(c.freqs) }

// Frequency is the median member frequency.
func (c *Candidate) Frequency() float64 {
	n := len(c.freqs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return c.freqs[n/2]
	}
	return (c.freqs[n/2-1] + c.freqs[n/2]) / 2
}

// Clarity is the mean member clarity.
func (c *Candidate) Clarity() float64 {
	if len(c.clarities) == 0 {
		return 0
	}
	return stat.Mean(c.clarities, nil)
}
