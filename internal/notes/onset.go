package notes

import (
	"math"

	"github.com/obiente/translate/goscore/internal/pitch"
)

// Decision is what the tracker did with one frame.
type Decision int

const (
	// Idle: no active candidate and the frame did not open one.
	Idle Decision = iota
	// Opened: a confident pitched frame started a candidate.
	Opened
	// Continued: the frame joined the active candidate.
	Continued
	// Weak: low clarity frame, the candidate stays open.
	Weak
	// ClosedSilence: an unpitched frame ended the candidate.
	ClosedSilence
	// ClosedPitchChange: the pitch moved beyond tolerance.
	ClosedPitchChange
	// ClosedNoise: too many consecutive weak frames.
	ClosedNoise
	// Replaced: a pitch change closed the candidate and the frame opened the next.
	Replaced
)

var decisionNames = [...]string{"idle", "opened", "continued", "weak", "closed_silence", "closed_pitch_change", "closed_noise", "replaced"}

func (d Decision) String() string {
	if d < 0 || int(d) >= len(decisionNames) {
		return "unknown"
	}
	return decisionNames[d]
}

// Closes reports whether the decision ended a candidate.
func (d Decision) Closes() bool {
	switch d {
	case ClosedSilence, ClosedPitchChange, ClosedNoise, Replaced:
		return true
	}
	return false
}

// TrackerOptions configure boundary detection.
type TrackerOptions struct {
	// Hop is the distance in samples between consecutive frame starts.
	Hop int
	// Tolerance is the pitch deviation in semitones a frame may have from the
	// candidate's median before a boundary is declared.
	Tolerance float64
	// MinClarity is required to open a candidate.
	MinClarity float64
	// ContinuationClarity is the level below which a frame counts as weak.
	ContinuationClarity float64
	// WeakFrameLimit consecutive weak frames close the candidate.
	WeakFrameLimit int
}

// Tracker decides frame by frame where candidates start and end. Frames must
// be pushed in order. A Tracker is not safe for concurrent use.
type Tracker struct {
	opts   TrackerOptions
	active *Candidate
	weak   int
	last   Decision
}

func NewTracker(opts TrackerOptions) *Tracker {
	if opts.WeakFrameLimit <= 0 {
		opts.WeakFrameLimit = 1
	}
	return &Tracker{opts: opts}
}

// Push feeds the estimate of the frame starting at sample start. When the
// frame ends the active candidate it is returned as closed.
func (t *Tracker) Push(start int, est pitch.Estimate) (closed *Candidate, d Decision) {
	defer func() { t.last = d }()

	if t.active == nil {
		if t.confident(est) {
			t.open(start, est)
			return nil, Opened
		}
		return nil, Idle
	}

	switch {
	case !est.HasPitch():
		return t.close(), ClosedSilence
	case est.Clarity < t.opts.ContinuationClarity:
		t.weak++
		if t.weak >= t.opts.WeakFrameLimit {
			return t.close(), ClosedNoise
		}
		return nil, Weak
	case math.Abs(Semitones(est.Frequency, t.active.Frequency())) > t.opts.Tolerance:
		closed = t.close()
		if t.confident(est) {
			t.open(start, est)
			return closed, Replaced
		}
		return closed, ClosedPitchChange
	}

	t.active.add(start, t.opts.Hop, est)
	t.weak = 0
	return nil, Continued
}

// Flush closes the active candidate at end of input, if any.
func (t *Tracker) Flush() *Candidate {
	return t.close()
}

// Active reports the open candidate, or nil.
func (t *Tracker) Active() *Candidate { return t.active }

// Last returns the decision made for the most recent frame.
func (t *Tracker) Last() Decision { return t.last }

func (t *Tracker) confident(est pitch.Estimate) bool {
	return est.HasPitch() && est.Clarity >= t.opts.MinClarity
}

func (t *Tracker) open(start int, est pitch.Estimate) {
	t.active = newCandidate(start, t.opts.Hop, est)
	t.weak = 0
}

func (t *Tracker) close() *Candidate {
	c := t.active
	t.active = nil
	t.weak = 0
	return c
}

// Semitones is the signed interval from ref to freq.
func Semitones(freq, ref float64) float64 {
	return 12 * math.Log2(freq/ref)
}
