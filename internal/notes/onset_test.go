package notes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiente/translate/goscore/internal/pitch"
)

func est(freq, clarity float64) pitch.Estimate {
	return pitch.Estimate{Frequency: freq, Clarity: clarity, Lag: 44100 / freq}
}

func newTestTracker() *Tracker {
	return NewTracker(TrackerOptions{
		Hop:                 10,
		Tolerance:           0.5,
		MinClarity:          0.8,
		ContinuationClarity: 0.5,
		WeakFrameLimit:      2,
	})
}

type step struct {
	e    pitch.Estimate
	want Decision
}

func run(t *testing.T, tr *Tracker, steps []step) []*Candidate {
	t.Helper()
	var closed []*Candidate
	for i, s := range steps {
		c, d := tr.Push(i*10, s.e)
		assert.Equal(t, s.want, d, "frame %d", i)
		assert.Equal(t, d, tr.Last())
		assert.Equal(t, d.Closes(), c != nil, "frame %d", i)
		if c != nil {
			closed = append(closed, c)
		}
	}
	return closed
}

func TestTrackerIdleUntilConfidentPitch(t *testing.T) {
	tr := newTestTracker()
	run(t, tr, []step{
		{pitch.None, Idle},
		{est(440, 0.6), Idle},
		{est(440, 0.95), Opened},
	})
	require.NotNil(t, tr.Active())
	assert.Equal(t, 20, tr.Active().Start)
}

func TestTrackerClosesOnSilence(t *testing.T) {
	tr := newTestTracker()
	closed := run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(441, 0.9), Continued},
		{est(439, 0.7), Continued},
		{pitch.None, ClosedSilence},
		{pitch.None, Idle},
	})
	require.Len(t, closed, 1)
	c := closed[0]
	assert.Equal(t, 3, c.Frames())
	assert.Equal(t, 0, c.Start)
	assert.Equal(t, 30, c.End)
	assert.Equal(t, 440.0, c.Frequency())
	assert.InDelta(t, (0.95+0.9+0.7)/3, c.Clarity(), 1e-12)
	assert.Nil(t, tr.Active())
}

func TestTrackerPitchChangeReplaces(t *testing.T) {
	tr := newTestTracker()
	closed := run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(440, 0.95), Continued},
		{est(523.25, 0.95), Replaced},
		{est(523.25, 0.95), Continued},
	})
	require.Len(t, closed, 1)
	assert.Equal(t, 2, closed[0].Frames())
	assert.Equal(t, 20, closed[0].End)

	require.NotNil(t, tr.Active())
	assert.Equal(t, 20, tr.Active().Start)
	assert.Equal(t, 2, tr.Active().Frames())
}

func TestTrackerPitchChangeWithoutConfidence(t *testing.T) {
	tr := newTestTracker()
	run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(523.25, 0.6), ClosedPitchChange},
		{est(523.25, 0.6), Idle},
	})
	assert.Nil(t, tr.Active())
}

func TestTrackerWeakFrames(t *testing.T) {
	tr := newTestTracker()
	closed := run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(440, 0.3), Weak},
		{est(440, 0.9), Continued},
		{est(440, 0.3), Weak},
		{est(440, 0.3), ClosedNoise},
	})
	require.Len(t, closed, 1)
	c := closed[0]
	// Weak frames are not members but the extent spans the gap between
	// the members at 0 and 20.
	assert.Equal(t, 2, c.Frames())
	assert.Equal(t, 0, c.Start)
	assert.Equal(t, 30, c.End)
}

func TestTrackerToleranceBoundary(t *testing.T) {
	near := 440 * math.Pow(2, 0.4/12)
	far := 440 * math.Pow(2, 0.6/12)

	tr := newTestTracker()
	run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(near, 0.95), Continued},
	})

	tr = newTestTracker()
	run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(far, 0.95), Replaced},
	})
}

func TestTrackerMedianResistsOutliers(t *testing.T) {
	tr := newTestTracker()
	run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(445, 0.95), Continued},
		{est(439, 0.95), Continued},
		{est(441, 0.95), Continued},
		{est(440, 0.95), Continued},
	})
	assert.Equal(t, 440.0, tr.Active().Frequency())

	tr.Push(50, est(442, 0.95))
	assert.Equal(t, 440.5, tr.Active().Frequency())
}

func TestTrackerFlush(t *testing.T) {
	tr := newTestTracker()
	assert.Nil(t, tr.Flush())

	run(t, tr, []step{
		{est(440, 0.95), Opened},
		{est(440, 0.95), Continued},
	})
	c := tr.Flush()
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Frames())
	assert.Equal(t, 20, c.End)
	assert.Nil(t, tr.Flush())
	assert.Nil(t, tr.Active())
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "closed_pitch_change", ClosedPitchChange.String())
	assert.Equal(t, "unknown", Decision(99).String())
	assert.False(t, Weak.Closes())
	assert.True(t, Replaced.Closes())
}

func TestSemitones(t *testing.T) {
	assert.InDelta(t, 12, Semitones(880, 440), 1e-12)
	assert.InDelta(t, -1, Semitones(440*math.Pow(2, -1.0/12), 440), 1e-12)
}
