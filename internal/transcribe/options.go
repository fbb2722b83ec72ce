package transcribe

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-viper/mapstructure/v2"

	"github.com/obiente/translate/goscore/internal/notes"
	"github.com/obiente/translate/goscore/internal/pitch"
)

// ErrInvalidConfiguration is returned, wrapped in an *OptionError, for
// options that cannot be used.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// OptionError describes the option that failed validation.
type OptionError struct {
	Option string
	Value  any
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%s: %s=%v %s", ErrInvalidConfiguration, e.Option, e.Value, e.Reason)
}

func (e *OptionError) Unwrap() error { return ErrInvalidConfiguration }

// Options configure a transcription run. Zero values take defaults.
type Options struct {
	// WindowSize is the analysis frame length in samples.
	WindowSize int `mapstructure:"window_size" json:"window_size,omitempty" yaml:"window_size,omitempty"`
	// HopSize is the distance between frame starts; 0 means WindowSize/2.
	HopSize int `mapstructure:"hop_size" json:"hop_size,omitempty" yaml:"hop_size,omitempty"`
	// ClarityThreshold is the MPM key maximum cutoff k.
	ClarityThreshold float64 `mapstructure:"clarity_threshold" json:"clarity_threshold,omitempty" yaml:"clarity_threshold,omitempty"`
	// ContinuationTolerance is in semitones.
	ContinuationTolerance float64 `mapstructure:"continuation_tolerance" json:"continuation_tolerance,omitempty" yaml:"continuation_tolerance,omitempty"`
	MinCandidateFrames    int     `mapstructure:"min_candidate_frames" json:"min_candidate_frames,omitempty" yaml:"min_candidate_frames,omitempty"`
	MinClarity            float64 `mapstructure:"min_clarity" json:"min_clarity,omitempty" yaml:"min_clarity,omitempty"`
	ContinuationClarity   float64 `mapstructure:"continuation_clarity" json:"continuation_clarity,omitempty" yaml:"continuation_clarity,omitempty"`
	WeakFrameLimit        int     `mapstructure:"weak_frame_limit" json:"weak_frame_limit,omitempty" yaml:"weak_frame_limit,omitempty"`
	SilenceRMS            float64 `mapstructure:"silence_rms" json:"silence_rms,omitempty" yaml:"silence_rms,omitempty"`
	// Workers bounds concurrent frame estimation; 0 means runtime.NumCPU.
	Workers int `mapstructure:"workers" json:"workers,omitempty" yaml:"workers,omitempty"`
}

// DefaultOptions returns the defaults with every field set.
func DefaultOptions() Options {
	return Options{
		WindowSize:            1024,
		HopSize:               512,
		ClarityThreshold:      pitch.DefaultCutoff,
		ContinuationTolerance: 0.5,
		MinCandidateFrames:    3,
		MinClarity:            0.8,
		ContinuationClarity:   0.5,
		WeakFrameLimit:        2,
		SilenceRMS:            pitch.DefaultSilenceRMS,
		Workers:               runtime.NumCPU(),
	}
}

// WithDefaults fills zero fields. Negative values are kept so that Validate
// can reject them.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.WindowSize == 0 {
		o.WindowSize = d.WindowSize
	}
	if o.HopSize == 0 {
		o.HopSize = o.WindowSize / 2
	}
	if o.ClarityThreshold == 0 {
		o.ClarityThreshold = d.ClarityThreshold
	}
	if o.ContinuationTolerance == 0 {
		o.ContinuationTolerance = d.ContinuationTolerance
	}
	if o.MinCandidateFrames == 0 {
		o.MinCandidateFrames = d.MinCandidateFrames
	}
	if o.MinClarity == 0 {
		o.MinClarity = d.MinClarity
	}
	if o.ContinuationClarity == 0 {
		o.ContinuationClarity = min(d.ContinuationClarity, o.MinClarity)
	}
	if o.WeakFrameLimit == 0 {
		o.WeakFrameLimit = d.WeakFrameLimit
	}
	if o.SilenceRMS == 0 {
		o.SilenceRMS = d.SilenceRMS
	}
	if o.Workers == 0 {
		o.Workers = d.Workers
	}
	return o
}

// Validate checks o after defaults are applied.
func (o Options) Validate() error {
	o = o.WithDefaults()
	switch {
	case o.WindowSize < 4:
		return &OptionError{"window_size", o.WindowSize, "must be at least 4"}
	case o.HopSize <= 0:
		return &OptionError{"hop_size", o.HopSize, "must be positive"}
	case o.HopSize > o.WindowSize:
		return &OptionError{"hop_size", o.HopSize, fmt.Sprintf("must not exceed window_size %d", o.WindowSize)}
	case o.ClarityThreshold <= 0 || o.ClarityThreshold > 1:
		return &OptionError{"clarity_threshold", o.ClarityThreshold, "must be in (0,1]"}
	case o.ContinuationTolerance <= 0:
		return &OptionError{"continuation_tolerance", o.ContinuationTolerance, "must be positive"}
	case o.MinCandidateFrames <= 0:
		return &OptionError{"min_candidate_frames", o.MinCandidateFrames, "must be positive"}
	case o.MinClarity <= 0 || o.MinClarity > 1:
		return &OptionError{"min_clarity", o.MinClarity, "must be in (0,1]"}
	case o.ContinuationClarity <= 0 || o.ContinuationClarity > o.MinClarity:
		return &OptionError{"continuation_clarity", o.ContinuationClarity, "must be positive and not above min_clarity"}
	case o.WeakFrameLimit <= 0:
		return &OptionError{"weak_frame_limit", o.WeakFrameLimit, "must be positive"}
	case o.SilenceRMS <= 0:
		return &OptionError{"silence_rms", o.SilenceRMS, "must be positive"}
	case o.Workers < 0:
		return &OptionError{"workers", o.Workers, "must not be negative"}
	}
	return nil
}

// Overlay returns o with the fields named in values replaced. Keys are the
// mapstructure names (window_size, min_clarity, ...) and string values are
// converted, so URL query parameters can be passed as they are. Unknown keys
// are rejected.
func (o Options) Overlay(values map[string]any) (Options, error) {
	if len(values) == 0 {
		return o, nil
	}
	out := o
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &out,
	})
	if err != nil {
		return o, err
	}
	if err := dec.Decode(values); err != nil {
		return o, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return out, nil
}

func (o Options) trackerOptions() notes.TrackerOptions {
	return notes.TrackerOptions{
		Hop:                 o.HopSize,
		Tolerance:           o.ContinuationTolerance,
		MinClarity:          o.MinClarity,
		ContinuationClarity: o.ContinuationClarity,
		WeakFrameLimit:      o.WeakFrameLimit,
	}
}
