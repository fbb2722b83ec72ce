// Package notes turns per-frame pitch estimates into named note events.
package notes

import (
	"strconv"
	"strings"
)

// Note is one transcribed note. Times are in seconds from the start of input.
type Note struct {
	Pitch       string  `json:"pitch" yaml:"pitch"`
	Octave      int     `json:"octave" yaml:"octave"`
	Frequency   float64 `json:"frequency" yaml:"frequency"`
	Cents       float64 `json:"cents" yaml:"cents"`
	MIDI        int     `json:"midi" yaml:"midi"`
	Clarity     float64 `json:"clarity" yaml:"clarity"`
	StartTime   float64 `json:"start" yaml:"start"`
	Duration    float64 `json:"duration" yaml:"duration"`
	StartSample int     `json:"start_sample" yaml:"start_sample"`
	EndSample   int     `json:"end_sample" yaml:"end_sample"`
}

// Name returns the pitch name and octave, e.g. "C#5".
func (n Note) Name() string { return n.Pitch + strconv.Itoa(n.Octave) }

func (n Note) String() string { return n.Name() }

// End is the time the note stops sounding.
func (n Note) End() float64 { return n.StartTime + n.Duration }

// Result is a transcription in temporal order.
type Result []Note

// Names lists the note names in order.
func (r Result) Names() []string {
	out := make([]string, len(r))
	for i, n := range r {
		out[i] = n.Name()
	}
	return out
}

// String renders the result as a comma separated list: "C5, E5, G5".
func (r Result) String() string {
	return strings.Join(r.Names(), ", ")
}
