package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/goscore/internal/audio"
	"github.com/obiente/translate/goscore/internal/config"
	"github.com/obiente/translate/goscore/internal/notes"
	"github.com/obiente/translate/goscore/internal/transcribe"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

type Server struct {
	cfg      config.Config
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
}

// client is one websocket connection. gorilla connections allow a single
// concurrent writer, so every write goes through send. meta is guarded by
// Server.mu.
type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	meta clientMeta
}

type clientMeta struct {
	peerID    string
	peerLabel string
	channelID string
}

func (c *client) send(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func NewServer(cfg config.Config) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		rooms: make(map[string]map[*client]struct{}),
	}
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	ss := newSession(s, &client{conn: conn})
	defer ss.close()
	ss.log.Info().Msg("session opened")

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ss.log.Warn().Err(err).Msg("ws read error")
			}
			return
		}
		// Bump read deadline on any activity
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = ss.c.send(map[string]any{"type": "error", "detail": "invalid json"})
			continue
		}
		if done := ss.dispatch(msg); done {
			return
		}
	}
}

// session holds the state of one streaming transcription.
type session struct {
	id  string
	srv *Server
	c   *client
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	roomID     string
	opts       transcribe.Options
	engine     transcribe.Engine
	sampleRate int
	samples    []float32
	dropped    int // samples trimmed from the front of the buffer
	seq        int
	closed     bool

	runMu     sync.Mutex // serializes transcriptions
	debounced func(func())
}

func newSession(s *Server, c *client) *session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	ss := &session{
		id:     id,
		srv:    s,
		c:      c,
		log:    log.With().Str("session_id", id).Logger(),
		ctx:    ctx,
		cancel: cancel,
		opts:   s.cfg.Transcription,
	}
	if d := s.cfg.Server.InterimInterval; d > 0 {
		ss.debounced = debounce.New(d)
	}
	return ss
}

func (ss *session) close() {
	ss.mu.Lock()
	ss.closed = true
	ss.mu.Unlock()
	ss.cancel()
	ss.srv.leaveRoom(ss.room(), ss.c)
	ss.log.Info().Msg("session closed")
}

// dispatch handles one control message and reports whether the session ended.
func (ss *session) dispatch(msg map[string]any) bool {
	switch msg["type"] {
	case "ping":
		_ = ss.c.send(map[string]any{"type": "pong", "ts": msg["ts"]})
	case "start":
		ss.start(msg)
	case "join_room":
		rid, _ := msg["room_id"].(string)
		if rid == "" {
			break
		}
		meta := ss.srv.meta(ss.c)
		if v, ok := msg["peer_id"].(string); ok {
			meta.peerID = v
		}
		if v, ok := msg["peer_label"].(string); ok {
			meta.peerLabel = v
		}
		if prev := ss.room(); prev != "" && prev != rid {
			ss.srv.leaveRoom(prev, ss.c)
		}
		ss.setRoom(rid)
		ss.srv.joinRoom(rid, ss.c, meta)
		_ = ss.c.send(map[string]any{"type": "room_joined", "room_id": rid, "peer_id": meta.peerID, "peer_label": meta.peerLabel})
	case "leave_room":
		ss.srv.leaveRoom(ss.room(), ss.c)
		ss.setRoom("")
		_ = ss.c.send(map[string]any{"type": "room_left"})
	case "chunk":
		ss.chunk(msg)
	case "stop":
		ss.finish()
		_ = ss.c.send(map[string]any{"type": "stopped", "session_id": ss.id})
		return true
	default:
		_ = ss.c.send(map[string]any{"type": "error", "detail": "unknown message type"})
	}
	return false
}

func (ss *session) start(msg map[string]any) {
	if v, ok := msg["channel_id"].(string); ok {
		ss.srv.setChannel(ss.c, v)
	}
	opts := ss.srv.cfg.Transcription
	if m, ok := msg["options"].(map[string]any); ok {
		o, err := opts.Overlay(m)
		if err != nil {
			_ = ss.c.send(map[string]any{"type": "error", "detail": err.Error()})
			return
		}
		opts = o
	}
	engine, err := transcribe.NewEngine(opts)
	if err != nil {
		_ = ss.c.send(map[string]any{"type": "error", "detail": err.Error()})
		return
	}

	ss.mu.Lock()
	ss.opts = opts
	ss.engine = engine
	if sr := int(asFloat(msg["sample_rate"])); sr > 0 && len(ss.samples) == 0 {
		ss.sampleRate = sr
	}
	sr := ss.sampleRate
	ss.mu.Unlock()

	ss.log.Info().
		Str("channel", ss.srv.meta(ss.c).channelID).
		Int("sample_rate", sr).
		Int("window_size", engine.Options().WindowSize).
		Msg("session started with configuration")
	_ = ss.c.send(map[string]any{"type": "started", "session_id": ss.id})
}

func (ss *session) chunk(msg map[string]any) {
	// Decode base64
	b64, _ := msg["data"].(string)
	if b64 == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		_ = ss.c.send(map[string]any{"type": "error", "detail": "invalid base64 audio"})
		return
	}

	// Inflate audio (WAV or PCM16)
	var pcm audio.PCM
	if mt, _ := msg["mime_type"].(string); mt == "audio/pcm" || mt == "audio/L16" || mt == "audio/pcm16" {
		sr := int(asFloat(msg["sample_rate"]))
		if sr <= 0 {
			ss.mu.Lock()
			sr = ss.sampleRate
			ss.mu.Unlock()
		}
		pcm, err = audio.DecodePCM16LE(raw, sr)
	} else {
		pcm, err = audio.DecodeWAV(raw)
	}
	if err != nil {
		ss.log.Warn().Err(err).Msg("audio decode failed")
		_ = ss.c.send(map[string]any{"type": "error", "detail": "decode audio failed"})
		return
	}
	pcm = audio.Downmix(pcm)

	ss.mu.Lock()
	if ss.engine == nil {
		engine, err := transcribe.NewEngine(ss.opts)
		if err != nil {
			ss.mu.Unlock()
			_ = ss.c.send(map[string]any{"type": "error", "detail": err.Error()})
			return
		}
		ss.engine = engine
	}
	if ss.sampleRate == 0 {
		ss.sampleRate = pcm.SampleRate
	}
	samples := pcm.Samples
	if pcm.SampleRate != ss.sampleRate {
		samples = audio.ResampleLinear(samples, pcm.SampleRate, ss.sampleRate)
	}
	ss.samples = append(ss.samples, samples...)
	if limit := ss.srv.cfg.Server.MaxSessionSeconds * ss.sampleRate; limit > 0 && len(ss.samples) > limit {
		trim := len(ss.samples) - limit
		ss.samples = append([]float32(nil), ss.samples[trim:]...)
		ss.dropped += trim
	}
	if fseq, ok := msg["sequence"].(float64); ok {
		ss.seq = int(fseq)
	}
	total := len(ss.samples)
	ss.mu.Unlock()

	ss.log.Debug().Int("chunk_samples", len(samples)).Int("total_samples", total).Msg("audio chunk received")
	if ss.debounced != nil {
		ss.debounced(func() { ss.emit(false) })
	}
}

func (ss *session) finish() {
	ss.emit(true)
	ss.mu.Lock()
	ss.closed = true
	ss.mu.Unlock()
}

// emit transcribes the session buffer and sends the notes to the client and
// its room. Interim runs are skipped once the session is closed.
func (ss *session) emit(final bool) {
	ss.runMu.Lock()
	defer ss.runMu.Unlock()

	ss.mu.Lock()
	if ss.closed || ss.engine == nil {
		ss.mu.Unlock()
		if final {
			ss.send(notes.Result{}, 0, true)
		}
		return
	}
	pcm := audio.PCM{Samples: append([]float32(nil), ss.samples...), SampleRate: ss.sampleRate, Channels: 1}
	engine, dropped, seq := ss.engine, ss.dropped, ss.seq
	ss.mu.Unlock()

	result, err := engine.Transcribe(ss.ctx, pcm)
	if err != nil {
		if ss.ctx.Err() == nil {
			ss.log.Warn().Err(err).Msg("transcription failed")
			_ = ss.c.send(map[string]any{"type": "error", "detail": err.Error()})
		}
		return
	}
	if dropped > 0 {
		shift(result, dropped, pcm.SampleRate)
	}
	ss.send(result, seq, final)
}

func (ss *session) send(result notes.Result, seq int, final bool) {
	if result == nil {
		result = notes.Result{}
	}
	payload := map[string]any{
		"type":     "notes",
		"text":     result.String(),
		"notes":    result,
		"isFinal":  final,
		"sequence": seq,
	}
	if err := ss.c.send(payload); err != nil {
		ss.log.Warn().Err(err).Msg("failed to send notes")
	} else {
		ss.log.Debug().Int("notes", len(result)).Bool("is_final", final).Msg("sent notes to client")
	}

	// Broadcast to room if joined
	if room := ss.room(); room != "" {
		meta := ss.srv.meta(ss.c)
		rp := map[string]any{
			"type":       "room_notes",
			"room_id":    room,
			"peer_id":    meta.peerID,
			"peer_label": meta.peerLabel,
			"channel_id": meta.channelID,
			"text":       result.String(),
			"notes":      result,
			"isFinal":    final,
			"sequence":   seq,
		}
		ss.srv.broadcast(room, ss.c, meta.peerID, rp)
	}
}

func (ss *session) room() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.roomID
}

func (ss *session) setRoom(id string) {
	ss.mu.Lock()
	ss.roomID = id
	ss.mu.Unlock()
}

// shift moves notes from buffer-relative to session-relative positions.
func shift(r notes.Result, samples, sampleRate int) {
	off := float64(samples) / float64(sampleRate)
	for i := range r {
		r[i].StartSample += samples
		r[i].EndSample += samples
		r[i].StartTime += off
	}
}

func (s *Server) meta(c *client) clientMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.meta
}

func (s *Server) setChannel(c *client, channelID string) {
	s.mu.Lock()
	c.meta.channelID = channelID
	s.mu.Unlock()
}

func (s *Server) joinRoom(room string, c *client, meta clientMeta) {
	if room == "" {
		return
	}
	s.mu.Lock()
	c.meta = meta
	m := s.rooms[room]
	if m == nil {
		m = make(map[*client]struct{})
		s.rooms[room] = m
	}
	m[c] = struct{}{}
	s.mu.Unlock()
	s.broadcastRoster(room)
}

func (s *Server) leaveRoom(room string, c *client) {
	if room == "" || c == nil {
		return
	}
	s.mu.Lock()
	if m := s.rooms[room]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(s.rooms, room)
		}
	}
	s.mu.Unlock()
	s.broadcastRoster(room)
}

// members snapshots a room so that writes happen without holding s.mu.
func (s *Server) members(room string) map[*client]clientMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[*client]clientMeta, len(s.rooms[room]))
	for c := range s.rooms[room] {
		out[c] = c.meta
	}
	return out
}

func (s *Server) broadcast(room string, sender *client, senderPeerID string, payload map[string]any) {
	for c, info := range s.members(room) {
		if c == sender {
			continue
		}
		if senderPeerID != "" && info.peerID == senderPeerID {
			continue
		}
		_ = c.send(payload)
	}
}

func (s *Server) broadcastRoster(room string) {
	clients := s.members(room)
	members := make([]map[string]any, 0, len(clients))
	for _, info := range clients {
		members = append(members, map[string]any{
			"peer_id":    info.peerID,
			"peer_label": info.peerLabel,
			"channel_id": info.channelID,
		})
	}
	payload := map[string]any{"type": "room_roster", "room_id": room, "members": members}
	for c := range clients {
		_ = c.send(payload)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}
