package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/notes"
)

const rate = 44100

func melody(gap time.Duration, freqs ...float64) audio.PCM {
	tones := make([]audio.Tone, len(freqs))
	for i, f := range freqs {
		tones[i] = audio.Tone{Frequency: f, Duration: 400 * time.Millisecond}
	}
	return audio.Render(tones, audio.RenderOptions{SampleRate: rate, Gap: gap, Ramp: 5 * time.Millisecond})
}

func mustEngine(t *testing.T, opts Options) Engine {
	t.Helper()
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

func assertMonotonic(t *testing.T, r notes.Result) {
	t.Helper()
	for i := 1; i < len(r); i++ {
		assert.LessOrEqual(t, r[i-1].EndSample, r[i].StartSample, "note %d overlaps", i)
		assert.LessOrEqual(t, r[i-1].End(), r[i].StartTime+1e-9, "note %d overlaps", i)
	}
	for _, n := range r {
		assert.Greater(t, n.Duration, 0.0)
	}
}

func TestPureSineYieldsOneNote(t *testing.T) {
	e := mustEngine(t, Options{})
	for _, f := range []float64{220, 440, 523.25, 880} {
		pcm := audio.Render([]audio.Tone{{Frequency: f, Duration: time.Second}}, audio.RenderOptions{SampleRate: rate})
		r, err := e.Transcribe(context.Background(), pcm)
		require.NoError(t, err)
		require.Len(t, r, 1, "%v Hz: %s", f, r)
		assert.Equal(t, notes.NameFor(f).String(), r[0].Name())
		assert.InEpsilon(t, f, r[0].Frequency, 0.005)
		assert.GreaterOrEqual(t, r[0].Clarity, 0.9)
		hop := float64(e.Options().HopSize) / rate
		assert.GreaterOrEqual(t, r[0].Duration, hop)
	}
}

func TestSilenceYieldsEmptyResult(t *testing.T) {
	e := mustEngine(t, Options{})
	for _, n := range []int{0, 1, 1023, 1024, 44100} {
		r, err := e.Transcribe(context.Background(), audio.PCM{Samples: make([]float32, n), SampleRate: rate, Channels: 1})
		require.NoError(t, err)
		assert.NotNil(t, r)
		assert.Empty(t, r, "%d samples", n)
	}
}

func TestMelodyWithGaps(t *testing.T) {
	e := mustEngine(t, Options{})
	r, err := e.Transcribe(context.Background(), melody(100*time.Millisecond, 523.25, 659.25, 783.99))
	require.NoError(t, err)

	assert.Equal(t, "C5, E5, G5", r.String())
	assertMonotonic(t, r)
	require.Len(t, r, 3)
	for i, n := range r {
		assert.InDelta(t, float64(i)*0.5, n.StartTime, 0.05, "note %d start", i)
		assert.InDelta(t, 0.4, n.Duration, 0.06, "note %d duration", i)
	}
}

func TestOctaveErrorResistance(t *testing.T) {
	fund := audio.Render([]audio.Tone{{Frequency: 220, Duration: time.Second, Amplitude: 0.3}}, audio.RenderOptions{SampleRate: rate})
	harm := audio.Render([]audio.Tone{{Frequency: 440, Duration: time.Second, Amplitude: 0.45}}, audio.RenderOptions{SampleRate: rate})
	for i := range fund.Samples {
		fund.Samples[i] += harm.Samples[i]
	}

	r, err := mustEngine(t, Options{}).Transcribe(context.Background(), fund)
	require.NoError(t, err)
	require.Len(t, r, 1)
	assert.Equal(t, "A3", r[0].Name())
}

func TestAdjacentTonesDoNotInventNotes(t *testing.T) {
	r, err := mustEngine(t, Options{}).Transcribe(context.Background(), melody(0, 523.25, 659.25))
	require.NoError(t, err)

	assert.NotEmpty(t, r)
	assert.LessOrEqual(t, len(r), 2)
	for _, n := range r {
		assert.Contains(t, []string{"C5", "E5"}, n.Name())
	}
	assertMonotonic(t, r)
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	pcm := melody(50*time.Millisecond, 392, 440, 493.88, 523.25)

	var results []notes.Result
	for _, workers := range []int{1, 1, 3, 8} {
		r, err := mustEngine(t, Options{Workers: workers}).Transcribe(context.Background(), pcm)
		require.NoError(t, err)
		results = append(results, r)
	}
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, "G4, A4, B4, C5", results[0].String())
}

func TestStreamDeliversNotesInOrder(t *testing.T) {
	e := mustEngine(t, Options{})
	pcm := melody(100*time.Millisecond, 523.25, 659.25, 783.99)

	var streamed notes.Result
	require.NoError(t, e.Stream(context.Background(), pcm, func(n notes.Note) { streamed = append(streamed, n) }))

	want, err := e.Transcribe(context.Background(), pcm)
	require.NoError(t, err)
	assert.Equal(t, want, streamed)
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := mustEngine(t, Options{})
	r, err := e.Transcribe(ctx, melody(0, 440))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r)

	r, err = e.Transcribe(ctx, audio.PCM{SampleRate: rate, Channels: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r)
}

func TestConcurrentRunsShareOnePipeline(t *testing.T) {
	p, err := NewPipeline(Options{}, rate)
	require.NoError(t, err)
	a, b := melody(0, 440), melody(0, 523.25)

	done := make(chan notes.Result, 2)
	for _, pcm := range []audio.PCM{a, b} {
		go func() {
			r, err := p.Run(context.Background(), pcm.Samples, nil)
			assert.NoError(t, err)
			done <- r
		}()
	}
	var names []string
	for range 2 {
		names = append(names, (<-done).String())
	}
	assert.ElementsMatch(t, []string{"A4", "C5"}, names)
}

func TestRejectsMultiChannelInput(t *testing.T) {
	pcm := audio.PCM{Samples: make([]float32, 2048), SampleRate: rate, Channels: 2}
	_, err := mustEngine(t, Options{}).Transcribe(context.Background(), pcm)
	assert.ErrorIs(t, err, ErrNotMono)
}

func TestRejectsMissingSampleRate(t *testing.T) {
	_, err := mustEngine(t, Options{}).Transcribe(context.Background(), audio.PCM{Samples: []float32{0}, Channels: 1})
	var oe *OptionError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "sample_rate", oe.Option)
}
