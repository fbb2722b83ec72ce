package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/export"
	"github.com/obiente/translate/goscore/internal/notes"
	"github.com/obiente/translate/goscore/internal/transcribe"
)

// addTranscriptionFlags defines the analysis flags shared by transcribe and
// serve. Each flag feeds the matching transcription.* key.
func addTranscriptionFlags(fs *pflag.FlagSet) {
	d := transcribe.DefaultOptions()
	fs.Int("window-size", d.WindowSize, "analysis window in samples")
	fs.Int("hop-size", 0, "hop between windows in samples (0 means window-size/2)")
	fs.Float64("clarity-threshold", d.ClarityThreshold, "key maximum cutoff relative to the highest NSDF peak")
	fs.Float64("tolerance", d.ContinuationTolerance, "pitch change in semitones that still continues a note")
	fs.Int("min-frames", d.MinCandidateFrames, "frames a candidate needs to be emitted as a note")
	fs.Float64("min-clarity", d.MinClarity, "clarity needed to open a note")
	fs.Float64("continuation-clarity", d.ContinuationClarity, "clarity needed to extend a note")
	fs.Int("weak-frames", d.WeakFrameLimit, "consecutive unclear frames tolerated inside a note")
	fs.Float64("silence-rms", d.SilenceRMS, "RMS below which a frame is silent")
	fs.Int("workers", 0, "pitch estimation goroutines (0 means one per CPU)")

	for flag, key := range map[string]string{
		"window-size":          "transcription.window_size",
		"hop-size":             "transcription.hop_size",
		"clarity-threshold":    "transcription.clarity_threshold",
		"tolerance":            "transcription.continuation_tolerance",
		"min-frames":           "transcription.min_candidate_frames",
		"min-clarity":          "transcription.min_clarity",
		"continuation-clarity": "transcription.continuation_clarity",
		"weak-frames":          "transcription.weak_frame_limit",
		"silence-rms":          "transcription.silence_rms",
		"workers":              "transcription.workers",
	} {
		bindKey(fs, flag, key)
	}
}

var errMIDIStdout = errors.New("--format midi with several files needs --midi-dir")

type transcribeFlags struct {
	format  string
	midiDir string
	jobs    int
}

func newTranscribeCmd(a *app) *cobra.Command {
	var f transcribeFlags
	cmd := &cobra.Command{
		Use:   "transcribe FILE.wav...",
		Short: "Transcribe WAV files and print their notes",
		Example: `  goscore transcribe melody.wav
  goscore transcribe --format json --midi-dir out/ *.wav`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.transcribe(ctx, cmd, args, f)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.format, "format", "f", string(export.Text), "output format ("+strings.Join(formatNames(), ", ")+")")
	fs.StringVar(&f.midiDir, "midi-dir", "", "also write a .mid file per input into this directory")
	fs.IntVarP(&f.jobs, "jobs", "j", 2, "files transcribed concurrently")
	addTranscriptionFlags(fs)
	return cmd
}

func formatNames() []string {
	names := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		names[i] = string(f)
	}
	return names
}

func (a *app) transcribe(ctx context.Context, cmd *cobra.Command, files []string, f transcribeFlags) error {
	format, err := export.ParseFormat(f.format)
	if err != nil {
		return err
	}
	if format == export.MIDI && len(files) > 1 && f.midiDir == "" {
		return errMIDIStdout
	}
	engine, err := transcribe.NewEngine(a.cfg.Transcription)
	if err != nil {
		return err
	}

	inputs := make([]audio.PCM, len(files))
	for i, path := range files {
		pcm, err := audio.DecodeWAVFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		inputs[i] = audio.Downmix(pcm)
	}

	results, err := transcribe.TranscribeAll(ctx, engine, inputs, f.jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, r := range results {
		log.Info().Str("file", files[i]).Int("notes", len(r)).Dur("audio", inputs[i].Duration()).Msg("transcribed")
		if len(files) > 1 && format == export.Text {
			fmt.Fprintf(out, "%s: ", files[i])
		}
		if format != export.MIDI || f.midiDir == "" {
			if err := export.Write(out, format, r); err != nil {
				return err
			}
		}
		if f.midiDir != "" {
			if err := writeMIDI(f.midiDir, files[i], r); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMIDI(dir, src string, r notes.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	path := filepath.Join(dir, base+export.MIDI.Extension())
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteMIDI(fh, r); err != nil {
		fh.Close()
		return err
	}
	log.Debug().Str("path", path).Msg("wrote midi")
	return fh.Close()
}
