package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV     = errors.New("invalid wav file")
	ErrEmptyBuffer    = errors.New("empty wav buffer")
	ErrOddPCM16Length = errors.New("pcm16 length must be even")
)

// DecodeWAV decodes a WAV blob into normalized float32 PCM. Channels stay
// interleaved; use Downmix before transcription.
func DecodeWAV(b []byte) (PCM, error) {
	return DecodeWAVReader(bytes.NewReader(b))
}

// DecodeWAVFile opens and decodes a WAV file from disk.
func DecodeWAVFile(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, err
	}
	defer f.Close()
	pcm, err := DecodeWAVReader(f)
	if err != nil {
		return PCM{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcm, nil
}

// DecodeWAVReader decodes WAV data from any seekable reader.
func DecodeWAVReader(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return PCM{}, err
	}
	if buf == nil {
		return PCM{}, ErrEmptyBuffer
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	out, err := normalize(buf.Data, dec.WavAudioFormat, bitDepth)
	if err != nil {
		return PCM{}, err
	}

	sr := int(dec.SampleRate)
	if sr == 0 && buf.Format != nil {
		sr = buf.Format.SampleRate
	}
	channels := int(dec.NumChans)
	if channels == 0 && buf.Format != nil {
		channels = buf.Format.NumChannels
	}
	if channels == 0 {
		channels = 1
	}
	return PCM{Samples: out, SampleRate: sr, Channels: channels}, nil
}

// formatFloat is the WAVE_FORMAT_IEEE_FLOAT format tag.
const formatFloat = 3

// normalize maps decoded sample words to float32 in [-1,1]. go-audio hands
// IEEE float samples over as their raw 32-bit patterns.
func normalize(data []int, format uint16, bitDepth int) ([]float32, error) {
	out := make([]float32, len(data))
	switch {
	case format == formatFloat && bitDepth == 32:
		for i, v := range data {
			out[i] = math.Float32frombits(uint32(v))
		}
	case format == formatFloat:
		return nil, fmt.Errorf("%w: %d-bit float samples", ErrInvalidWAV, bitDepth)
	case bitDepth == 8:
		for i, v := range data {
			out[i] = float32(v-128) / 128
		}
	default:
		scale := 1 / float32(int64(1)<<(bitDepth-1))
		for i, v := range data {
			out[i] = float32(v) * scale
		}
	}
	return out, nil
}

// DecodePCM16LE converts little-endian PCM16 bytes into mono float32 samples at the given sample rate.
func DecodePCM16LE(b []byte, sampleRate int) (PCM, error) {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if len(b)%2 != 0 {
		return PCM{}, ErrOddPCM16Length
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return PCM{Samples: out, SampleRate: sampleRate, Channels: 1}, nil
}

// EncodeWAV writes PCM as integer WAV with the given bit depth (16, 24 or 32).
func EncodeWAV(w io.WriteSeeker, p PCM, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	channels := p.Channels
	if channels <= 0 {
		channels = 1
	}
	maxInt := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(p.Samples))
	for i, s := range p.Samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * maxInt))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: p.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	enc := wav.NewEncoder(w, p.SampleRate, bitDepth, channels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile encodes p into a new file at path.
func WriteWAVFile(path string, p PCM, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, p, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
