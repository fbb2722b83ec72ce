package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/notes"
)

// ErrNotMono is returned for multi-channel input; callers downmix first.
var ErrNotMono = errors.New("input must be mono")

// Engine is a small interface for note transcription.
type Engine interface {
	// Transcribe runs the full pipeline over pcm.
	Transcribe(ctx context.Context, pcm audio.PCM) (notes.Result, error)
	// Stream runs the pipeline and calls back for each note as it becomes final.
	// The callback should be fast and non-blocking to avoid stalling the run.
	Stream(ctx context.Context, pcm audio.PCM, onNote func(notes.Note)) error
	// Options returns the effective options.
	Options() Options
}

type mpmEngine struct {
	opts Options
}

// NewEngine validates opts once and returns an MPM backed engine. The engine
// holds no mutable state and is safe for concurrent use.
func NewEngine(opts Options) (Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &mpmEngine{opts: opts.WithDefaults()}, nil
}

func (e *mpmEngine) Options() Options { return e.opts }

func (e *mpmEngine) Transcribe(ctx context.Context, pcm audio.PCM) (notes.Result, error) {
	return e.run(ctx, pcm, nil)
}

func (e *mpmEngine) Stream(ctx context.Context, pcm audio.PCM, onNote func(notes.Note)) error {
	_, err := e.run(ctx, pcm, onNote)
	return err
}

func (e *mpmEngine) run(ctx context.Context, pcm audio.PCM, onNote func(notes.Note)) (notes.Result, error) {
	if !pcm.Mono() {
		return nil, fmt.Errorf("%w: got %d channels", ErrNotMono, pcm.Channels)
	}
	p, err := NewPipeline(e.opts, pcm.SampleRate)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, pcm.Samples, onNote)
}
