package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gopkg.in/yaml.v3"

	"github.com/obiente/translate/goscore/internal/notes"
)

func sample() notes.Result {
	return notes.Result{
		{Pitch: "C", Octave: 5, MIDI: 72, Frequency: 523.25, Clarity: 0.98, StartTime: 0, Duration: 0.4},
		{Pitch: "E", Octave: 5, MIDI: 76, Frequency: 659.25, Clarity: 0.97, StartTime: 0.5, Duration: 0.4},
		{Pitch: "G", Octave: 5, MIDI: 79, Frequency: 783.99, Cents: -1.2, Clarity: 0.96, StartTime: 1, Duration: 0.4},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"": Text, "TXT": Text, "json": JSON, "yml": YAML, "csv": CSV, " mid ": MIDI, "smf": MIDI,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorIs(t, Write(&bytes.Buffer{}, Format("pdf"), nil), ErrUnknownFormat)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Text, sample()))
	assert.Equal(t, "C5, E5, G5\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, sample()))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "C5, E5, G5", doc.Text)
	assert.Equal(t, sample(), doc.Notes)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Contains(t, buf.String(), `"notes": []`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, YAML, sample()))
	assert.Contains(t, buf.String(), "pitch: G")

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "C5, E5, G5", doc.Text)
	require.Len(t, doc.Notes, 3)
	assert.Equal(t, "G5", doc.Notes[2].Name())
	assert.Equal(t, 1.0, doc.Notes[2].StartTime)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"E5", "E", "5", "76", "659.250", "0.0", "0.970", "0.5000", "0.4000"}, rows[2])
	assert.Equal(t, "-1.2", rows[3][5])
}

func TestWriteMIDI(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, MIDI, sample()))

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)

	var (
		ons, offs []uint8
		onTimes   []int64
		abs       int64
	)
	for _, ev := range s.Tracks[0] {
		abs += int64(ev.Delta)
		var ch, key, vel uint8
		msg := midi.Message(ev.Message)
		switch {
		case msg.GetNoteOn(&ch, &key, &vel):
			ons = append(ons, key)
			onTimes = append(onTimes, s.TimeAt(abs))
		case msg.GetNoteOff(&ch, &key, &vel):
			offs = append(offs, key)
		}
	}
	assert.Equal(t, []uint8{72, 76, 79}, ons)
	assert.Equal(t, []uint8{72, 76, 79}, offs)
	require.Len(t, onTimes, 3)
	assert.InDelta(t, 0, onTimes[0], 1000)
	assert.InDelta(t, 500_000, onTimes[1], 1000)
	assert.InDelta(t, 1_000_000, onTimes[2], 1000)
}

func TestMIDIFileKeepsNotesAtLeastOneTick(t *testing.T) {
	r := notes.Result{{Pitch: "A", Octave: 4, MIDI: 69, StartTime: 0.25, Duration: 0}}
	s := MIDIFile(r)
	require.Len(t, s.Tracks, 1)

	var offDelta uint32
	for _, ev := range s.Tracks[0] {
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOff(&ch, &key, &vel) {
			offDelta = ev.Delta
		}
	}
	assert.Equal(t, uint32(1), offDelta)
}

func TestFormatMetadata(t *testing.T) {
	for _, f := range Formats {
		assert.NotEmpty(t, f.ContentType())
		assert.NotEmpty(t, f.Extension())
	}
	assert.Equal(t, ".mid", MIDI.Extension())
	assert.Equal(t, "application/json", JSON.ContentType())
}
