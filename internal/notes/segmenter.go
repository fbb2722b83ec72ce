package notes

// Segmenter finalizes closed candidates into notes.
type Segmenter struct {
	sampleRate float64
	minFrames  int
	onNote     func(Note)

	notes     Result
	discarded int
}

// NewSegmenter returns a segmenter for a run at sampleRate. Candidates with
// fewer than minFrames member frames are dropped. onNote, if set, is called
// for each note as it is finalized.
func NewSegmenter(sampleRate, minFrames int, onNote func(Note)) *Segmenter {
	return &Segmenter{
		sampleRate: float64(sampleRate),
		minFrames:  max(minFrames, 1),
		onNote:     onNote,
	}
}

// Close finalizes c. It reports false when c was discarded.
func (s *Segmenter) Close(c *Candidate) (Note, bool) {
	if c == nil || c.Frames() < s.minFrames {
		if c != nil {
			s.discarded++
		}
		return Note{}, false
	}

	freq := c.Frequency()
	name := NameFor(freq)
	startT := float64(c.Start) / s.sampleRate
	n := Note{
		Pitch:       name.Class.String(),
		Octave:      name.Octave,
		Frequency:   freq,
		Cents:       Cents(freq),
		MIDI:        name.MIDI(),
		Clarity:     c.Clarity(),
		StartTime:   startT,
		Duration:    float64(c.End)/s.sampleRate - startT,
		StartSample: c.Start,
		EndSample:   c.End,
	}
	s.notes = append(s.notes, n)
	if s.onNote != nil {
		s.onNote(n)
	}
	return n, true
}

// Result returns the notes finalized so far.
func (s *Segmenter) Result() Result { return s.notes }

// Discarded is the number of candidates dropped as too short.
func (s *Segmenter) Discarded() int { return s.discarded }
