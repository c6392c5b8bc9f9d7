// Package deepgram streams journal audio to Deepgram's live listen API
// and turns its responses into transcript events for the capture session.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"moodlog/internal/domain"
	"moodlog/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"
)

// Config holds the Deepgram-specific knobs. Capture settings such as
// sample rate travel in ports.StreamingConfig so the session layer never
// has to know which provider is wired in.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.TranscriptionProvider against Deepgram.
type Provider struct {
	cfg Config
	log zerolog.Logger
}

func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Provider{
		cfg: cfg,
		log: log.With().Str("component", "deepgram").Logger(),
	}
}

// StartStreaming dials the listen endpoint and returns a live session.
// The session ends when the caller closes it, the context is canceled,
// or Deepgram drops the connection.
func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := listenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	p.log.Debug().Str("model", p.cfg.Model).Msg("listen stream opened")

	s := &liveSession{
		conn:   conn,
		log:    p.log,
		events: make(chan domain.TranscriptEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	s.wg.Add(2)
	go s.receive()
	go s.transmit()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}

// liveSession is one websocket conversation with Deepgram. Audio goes
// out on the audio channel, transcript events come back on events, and
// done closes once both directions have wound down.
type liveSession struct {
	conn *websocket.Conn
	log  zerolog.Logger

	events chan domain.TranscriptEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *liveSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.sessionErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *liveSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *liveSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *liveSession) Wait() error {
	<-s.done
	return s.sessionErr()
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.sessionErr()
}

func (s *liveSession) sessionErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// recordErr keeps the first real failure. A normal close is how every
// healthy session ends and must not surface as an error.
func (s *liveSession) recordErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// transmit drains queued audio to the socket, then tells Deepgram the
// take is over so it flushes any pending final transcript.
func (s *liveSession) transmit() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.recordErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.recordErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *liveSession) receive() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.recordErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}
		if !s.handleMessage(payload) {
			return
		}
	}
}

// handleMessage maps one server payload to a transcript event. It
// returns false when the session should stop reading.
func (s *liveSession) handleMessage(payload []byte) bool {
	var msg listenMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.log.Debug().Err(err).Msg("skipping unparseable listen payload")
		return true
	}

	if msg.isError() {
		s.log.Warn().Str("detail", msg.errorDetail()).Msg("listen stream reported an error")
		// An empty final event unblocks consumers waiting on a last
		// transcript before the error surfaces through Wait.
		s.emit(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, IsSpeechFinal: true})
		s.recordErr(errors.New(msg.errorDetail()))
		return false
	}

	text := msg.transcript()
	if text == "" {
		return true
	}

	event := domain.TranscriptEvent{Text: text, IsSpeechFinal: msg.SpeechFinal}
	if msg.IsFinal || msg.SpeechFinal {
		event.Kind = domain.TranscriptKindFinal
	} else {
		event.Kind = domain.TranscriptKindPartial
	}
	s.emit(event)
	return true
}

// emit never blocks the read loop. If the consumer has fallen behind on
// partials, dropping the event is safer than stalling the socket.
func (s *liveSession) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
		s.log.Debug().Str("kind", string(event.Kind)).Msg("dropping transcript event, consumer is behind")
	}
}

// listenMessage covers both response shapes Deepgram uses: streaming
// results carry a single channel, batch-style ones nest channels under
// results.
type listenMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []listenAlternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []listenAlternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type listenAlternative struct {
	Transcript string `json:"transcript"`
}

func (m listenMessage) isError() bool {
	return strings.EqualFold(m.Type, "Error")
}

func (m listenMessage) errorDetail() string {
	if detail := strings.TrimSpace(m.Message); detail != "" {
		return detail
	}
	return "deepgram returned an unknown error"
}

func (m listenMessage) transcript() string {
	if len(m.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(m.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(m.Results.Channels) > 0 && len(m.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(m.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

// listenURL builds the websocket endpoint from the provider config and
// the session's capture settings, filling Deepgram's expected defaults
// for raw PCM.
func listenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	endpoint, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	query := endpoint.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}
