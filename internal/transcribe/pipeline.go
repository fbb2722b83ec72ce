// Package transcribe runs the note transcription pipeline over PCM input.
package transcribe

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/stream"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/notes"
	"github.com/obiente/translate/goscore/internal/pitch"
)

// Pipeline transcribes mono sample sequences at one sample rate. It keeps no
// per-run state, so one Pipeline may serve concurrent Run calls.
type Pipeline struct {
	opts       Options
	sampleRate int
	segmenter  audio.Segmenter
	estimator  *pitch.MPM
}

// NewPipeline validates opts and returns a pipeline for sampleRate.
func NewPipeline(opts Options, sampleRate int) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, &OptionError{"sample_rate", sampleRate, "must be positive"}
	}
	opts = opts.WithDefaults()
	return &Pipeline{
		opts:       opts,
		sampleRate: sampleRate,
		segmenter:  audio.Segmenter{Window: opts.WindowSize, Hop: opts.HopSize},
		estimator: pitch.New(sampleRate, pitch.Config{
			Cutoff:     opts.ClarityThreshold,
			SilenceRMS: opts.SilenceRMS,
		}),
	}, nil
}

// Options returns the effective options.
func (p *Pipeline) Options() Options { return p.opts }

// Run transcribes samples. onNote, if set, is called for each note as soon
// as it is final, in order. A cancelled run returns ctx.Err() and no result.
func (p *Pipeline) Run(ctx context.Context, samples []float32, onNote func(notes.Note)) (notes.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return notes.Result{}, nil
	}
	started := time.Now()

	tracker := notes.NewTracker(p.opts.trackerOptions())
	segmenter := notes.NewSegmenter(p.sampleRate, p.opts.MinCandidateFrames, onNote)

	// Estimates run on the pool; callbacks execute one at a time in
	// submission order, which keeps the tracker in frame order.
	s := stream.New().WithMaxGoroutines(p.opts.Workers)
	frames := 0
	for frame := range p.segmenter.Frames(samples) {
		if ctx.Err() != nil {
			break
		}
		frames++
		s.Go(func() stream.Callback {
			var est pitch.Estimate
			if ctx.Err() == nil {
				est = p.estimator.Estimate(frame.Samples)
			}
			return func() {
				if closed, _ := tracker.Push(frame.Start, est); closed != nil {
					segmenter.Close(closed)
				}
			}
		})
	}
	s.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	segmenter.Close(tracker.Flush())

	result := segmenter.Result()
	if result == nil {
		result = notes.Result{}
	}
	log.Debug().
		Int("frames", frames).
		Int("notes", len(result)).
		Int("discarded", segmenter.Discarded()).
		Dur("elapsed", time.Since(started)).
		Msg("transcription run complete")
	return result, nil
}
