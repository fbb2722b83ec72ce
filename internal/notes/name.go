package notes

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// A4 is the reference pitch of the equal-tempered scale.
const A4 = 440.0

// PitchClass is a chromatic pitch class with C = 0.
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var classNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (p PitchClass) String() string {
	if p < 0 || p > B {
		return "PitchClass(" + strconv.Itoa(int(p)) + ")"
	}
	return classNames[p]
}

// Name is a pitch name with its octave, where C4 is middle C.
type Name struct {
	Class  PitchClass
	Octave int
}

func (n Name) String() string {
	return n.Class.String() + strconv.Itoa(n.Octave)
}

// MIDI returns the MIDI key number (A4 = 69).
func (n Name) MIDI() int {
	return (n.Octave+1)*12 + int(n.Class)
}

// Frequency returns the equal-tempered frequency of n.
func (n Name) Frequency() float64 {
	return A4 * math.Pow(2, float64(n.MIDI()-69)/12)
}

// semitones returns the offset from A4, rounding ties to even.
func semitones(freq float64) int {
	if !(freq > 0) || math.IsInf(freq, 0) {
		panic(fmt.Sprintf("notes: frequency %v is not a finite positive value", freq))
	}
	return int(math.RoundToEven(12 * math.Log2(freq/A4)))
}

// NameFor maps freq to the nearest equal-tempered pitch. It panics if freq is
// not finite and positive.
func NameFor(freq float64) Name {
	n := semitones(freq) + 9 // offset from C4
	return Name{
		Class:  PitchClass(floorMod(n, 12)),
		Octave: 4 + floorDiv(n, 12),
	}
}

// Cents returns how far freq lies from its named pitch, in [-50, 50].
func Cents(freq float64) float64 {
	return 1200*math.Log2(freq/A4) - 100*float64(semitones(freq))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

var ErrInvalidName = errors.New("invalid note name")

var letterClass = map[byte]PitchClass{'C': C, 'D': D, 'E': E, 'F': F, 'G': G, 'A': A, 'B': B}

// ParseName parses names such as "C5", "F#3", "Bb2" or "c#-1". Flats are
// mapped to their enharmonic sharp.
func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	class, ok := letterClass[strings.ToUpper(s[:1])[0]]
	if !ok {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	rest := s[1:]
	shift := 0
	switch {
	case strings.HasPrefix(rest, "#"), strings.HasPrefix(rest, "♯"):
		shift = 1
	case strings.HasPrefix(rest, "b"), strings.HasPrefix(rest, "♭"):
		shift = -1
	}
	if shift != 0 {
		_, size := utf8.DecodeRuneInString(rest)
		rest = rest[size:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, s)
	}

	midi := (octave+1)*12 + int(class) + shift
	return Name{Class: PitchClass(floorMod(midi, 12)), Octave: floorDiv(midi, 12) - 1}, nil
}
