// Package export renders transcription results for display and storage.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/obiente/translate/goscore/internal/notes"
)

// Format names an output encoding.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
	MIDI Format = "midi"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported format.
var Formats = []Format{Text, JSON, YAML, CSV, MIDI}

// ParseFormat accepts a format name or a common alias ("yml", "mid", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	case "midi", "mid", "smf":
		return MIDI, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type for HTTP responses.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case YAML:
		return "application/yaml"
	case CSV:
		return "text/csv; charset=utf-8"
	case MIDI:
		return "audio/midi"
	}
	return "text/plain; charset=utf-8"
}

// Extension is the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case JSON:
		return ".json"
	case YAML:
		return ".yaml"
	case CSV:
		return ".csv"
	case MIDI:
		return ".mid"
	}
	return ".txt"
}

// Write renders r to w in format f.
func Write(w io.Writer, f Format, r notes.Result) error {
	switch f {
	case Text:
		return WriteText(w, r)
	case JSON:
		return WriteJSON(w, r)
	case YAML:
		return WriteYAML(w, r)
	case CSV:
		return WriteCSV(w, r)
	case MIDI:
		return WriteMIDI(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Document is the structured form of a result.
type Document struct {
	Text  string       `json:"text" yaml:"text"`
	Notes notes.Result `json:"notes" yaml:"notes"`
}

func document(r notes.Result) Document {
	if r == nil {
		r = notes.Result{}
	}
	return Document{Text: r.String(), Notes: r}
}

// WriteText writes the comma separated note names and a newline.
func WriteText(w io.Writer, r notes.Result) error {
	_, err := io.WriteString(w, r.String()+"\n")
	return err
}

func WriteJSON(w io.Writer, r notes.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document(r))
}

func WriteYAML(w io.Writer, r notes.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document(r)); err != nil {
		return err
	}
	return enc.Close()
}

var csvHeader = []string{"name", "pitch", "octave", "midi", "frequency", "cents", "clarity", "start", "duration"}

// WriteCSV writes one row per note after a header row.
func WriteCSV(w io.Writer, r notes.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, n := range r {
		row := []string{
			n.Name(),
			n.Pitch,
			strconv.Itoa(n.Octave),
			strconv.Itoa(n.MIDI),
			ff(n.Frequency, 3),
			ff(n.Cents, 1),
			ff(n.Clarity, 3),
			ff(n.StartTime, 4),
			ff(n.Duration, 4),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
