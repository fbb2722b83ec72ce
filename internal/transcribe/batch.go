package transcribe

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/notes"
)

// TranscribeAll transcribes independent inputs with at most limit running at
// once (limit <= 0 means unbounded). Results are in input order. The first
// failure cancels the remaining inputs.
func TranscribeAll(ctx context.Context, engine Engine, inputs []audio.PCM, limit int) ([]notes.Result, error) {
	results := make([]notes.Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, pcm := range inputs {
		g.Go(func() error {
			r, err := engine.Transcribe(ctx, pcm)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
