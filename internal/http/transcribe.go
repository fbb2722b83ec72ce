package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/config"
	"github.com/obiente/translate/goscore/internal/export"
	"github.com/obiente/translate/goscore/internal/transcribe"
)

// transcribeHandler runs a one-shot transcription of the request body. The
// body is a WAV file, or raw PCM16LE when ?sample_rate is given or the
// content type is audio/pcm. ?format defaults to json. Other query
// parameters override options.
type transcribeHandler struct {
	cfg config.Config
}

func (h *transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("format")
	if name == "" {
		name = string(export.JSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	overrides := map[string]any{}
	for k := range q {
		if k != "format" && k != "sample_rate" {
			overrides[k] = q.Get(k)
		}
	}
	opts, err := h.cfg.Transcription.Overlay(overrides)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	engine, err := transcribe.NewEngine(opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pcm, err := decodeBody(body, r.Header.Get("Content-Type"), q.Get("sample_rate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := engine.Transcribe(r.Context(), audio.Downmix(pcm))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, transcribe.ErrInvalidConfiguration) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	hlog.FromRequest(r).Info().
		Int("sample_rate", pcm.SampleRate).
		Dur("audio", pcm.Duration()).
		Int("notes", len(result)).
		Str("format", string(format)).
		Msg("transcribed upload")

	var buf bytes.Buffer
	if err := export.Write(&buf, format, result); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format == export.MIDI {
		w.Header().Set("Content-Disposition", `attachment; filename="transcription.mid"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func decodeBody(body []byte, contentType, sampleRate string) (audio.PCM, error) {
	if len(body) == 0 {
		return audio.PCM{}, errors.New("empty request body")
	}
	isPCM := sampleRate != "" || strings.HasPrefix(contentType, "audio/pcm") || strings.HasPrefix(contentType, "audio/l16")
	if bytes.HasPrefix(body, []byte("RIFF")) || !isPCM {
		return audio.DecodeWAV(body)
	}
	sr := 0
	if sampleRate != "" {
		n, err := strconv.Atoi(sampleRate)
		if err != nil || n <= 0 {
			return audio.PCM{}, fmt.Errorf("invalid sample_rate %q", sampleRate)
		}
		sr = n
	}
	return audio.DecodePCM16LE(body, sr)
}
