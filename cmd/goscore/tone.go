package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/notes"
)

type toneFlags struct {
	output     string
	sampleRate int
	bitDepth   int
	duration   time.Duration
	gap        time.Duration
	ramp       time.Duration
	amplitude  float64
}

func newToneCmd() *cobra.Command {
	var f toneFlags
	cmd := &cobra.Command{
		Use:   "tone NOTE[:SECONDS]... -o out.wav",
		Short: "Render a note sequence to a WAV file",
		Long: `tone renders sine tones for a sequence of note names. A note may carry
its own length in seconds (A4:0.25). Use "r" for a rest.`,
		Example: `  goscore tone C5 E5 G5 -o arpeggio.wav
  goscore tone A4:1 r:0.5 A5:1 --gap 0 -o octave.wav`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tones, err := parseTones(args, f.duration, f.amplitude)
			if err != nil {
				return err
			}
			pcm := audio.Render(tones, audio.RenderOptions{SampleRate: f.sampleRate, Gap: f.gap, Ramp: f.ramp})
			if err := audio.WriteWAVFile(f.output, pcm, f.bitDepth); err != nil {
				return err
			}
			log.Info().Str("path", f.output).Int("tones", len(tones)).Dur("audio", pcm.Duration()).Msg("wrote tones")
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "WAV file to write")
	fs.IntVar(&f.sampleRate, "sample-rate", 44100, "sample rate in Hz")
	fs.IntVar(&f.bitDepth, "bit-depth", 16, "bits per sample")
	fs.DurationVarP(&f.duration, "duration", "d", 400*time.Millisecond, "length of notes without an explicit length")
	fs.DurationVar(&f.gap, "gap", 100*time.Millisecond, "silence between notes")
	fs.DurationVar(&f.ramp, "ramp", 5*time.Millisecond, "attack and release ramp")
	fs.Float64Var(&f.amplitude, "amplitude", 0.5, "peak amplitude (0-1]")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// parseTones turns NOTE[:SECONDS] arguments into tones.
func parseTones(args []string, def time.Duration, amplitude float64) ([]audio.Tone, error) {
	if amplitude <= 0 || amplitude > 1 {
		return nil, fmt.Errorf("amplitude %v out of range (0, 1]", amplitude)
	}
	tones := make([]audio.Tone, 0, len(args))
	for _, arg := range args {
		name, secs, hasLen := strings.Cut(arg, ":")
		d := def
		if hasLen {
			s, err := strconv.ParseFloat(secs, 64)
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("%q: invalid length %q", arg, secs)
			}
			d = time.Duration(s * float64(time.Second))
		}
		t := audio.Tone{Duration: d, Amplitude: amplitude}
		switch strings.ToLower(name) {
		case "r", "rest":
		default:
			n, err := notes.ParseName(name)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", arg, err)
			}
			t.Frequency = n.Frequency()
		}
		tones = append(tones, t)
	}
	return tones, nil
}
