package export

import (
	"io"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/obiente/translate/goscore/internal/notes"
)

const (
	midiTempo    = 120.0
	midiTicks    = smf.MetricTicks(960)
	midiChannel  = 0
	midiVelocity = 100
)

// WriteMIDI writes r as a single track Standard MIDI File at 120 BPM.
func WriteMIDI(w io.Writer, r notes.Result) error {
	_, err := MIDIFile(r).WriteTo(w)
	return err
}

// MIDIFile converts r to an SMF with one note per result entry.
func MIDIFile(r notes.Result) *smf.SMF {
	s := smf.New()
	s.TimeFormat = midiTicks

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("goscore"))
	tr.Add(0, smf.MetaTempo(midiTempo))

	var cursor uint32
	for _, n := range r {
		on := ticksAt(n.StartTime)
		off := max(ticksAt(n.End()), on+1)
		key := uint8(min(max(n.MIDI, 0), 127))

		tr.Add(sub(on, cursor), midi.NoteOn(midiChannel, key, midiVelocity))
		tr.Add(sub(off, max(on, cursor)), midi.NoteOff(midiChannel, key))
		cursor = max(off, cursor)
	}
	tr.Close(0)
	_ = s.Add(tr)
	return s
}

func ticksAt(seconds float64) uint32 {
	return midiTicks.Ticks(midiTempo, time.Duration(seconds*float64(time.Second)))
}

func sub(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}
