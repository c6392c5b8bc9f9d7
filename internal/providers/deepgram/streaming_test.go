package deepgram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"moodlog/internal/domain"
	"moodlog/internal/ports"
)

func newTestSession() *liveSession {
	return &liveSession{
		log:    zerolog.Nop(),
		events: make(chan domain.TranscriptEvent, 8),
		done:   make(chan struct{}),
	}
}

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{}, zerolog.Nop())
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
}

func TestProviderStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: ""}, zerolog.Nop())
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := listenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "wss://api.deepgram.com/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "encoding=linear16") {
		t.Fatalf("expected default encoding in url: %s", url)
	}
	if !strings.Contains(url, "sample_rate=16000") {
		t.Fatalf("expected default sample_rate in url: %s", url)
	}
	if !strings.Contains(url, "channels=1") {
		t.Fatalf("expected default channels in url: %s", url)
	}
}

func TestListenURLWithLanguageAndSmartFormat(t *testing.T) {
	t.Parallel()

	url, err := listenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en-US", SmartFormat: true},
		ports.StreamingConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "language=en-US") {
		t.Fatalf("expected language in url: %s", url)
	}
	if !strings.Contains(url, "smart_format=true") {
		t.Fatalf("expected smart_format in url: %s", url)
	}
}

func TestListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := listenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestHandleMessageEmitsPartialAndFinalEvents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		payload  string
		wantKind domain.TranscriptKind
		wantText string
	}{
		{
			name:     "interim result",
			payload:  `{"channel":{"alternatives":[{"transcript":"feeling pretty"}]},"is_final":false}`,
			wantKind: domain.TranscriptKindPartial,
			wantText: "feeling pretty",
		},
		{
			name:     "final result",
			payload:  `{"channel":{"alternatives":[{"transcript":"feeling pretty good"}]},"is_final":true}`,
			wantKind: domain.TranscriptKindFinal,
			wantText: "feeling pretty good",
		},
		{
			name:     "speech final counts as final",
			payload:  `{"channel":{"alternatives":[{"transcript":"done now"}]},"speech_final":true}`,
			wantKind: domain.TranscriptKindFinal,
			wantText: "done now",
		},
		{
			name:     "nested results shape",
			payload:  `{"results":{"channels":[{"alternatives":[{"transcript":" trimmed "}]}]},"is_final":true}`,
			wantKind: domain.TranscriptKindFinal,
			wantText: "trimmed",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestSession()
			if !s.handleMessage([]byte(tc.payload)) {
				t.Fatalf("expected session to keep reading")
			}

			select {
			case event := <-s.events:
				if event.Kind != tc.wantKind {
					t.Fatalf("unexpected kind: %q", event.Kind)
				}
				if event.Text != tc.wantText {
					t.Fatalf("unexpected text: %q", event.Text)
				}
			default:
				t.Fatalf("expected an event")
			}
		})
	}
}

func TestHandleMessageSkipsEmptyAndUnparseablePayloads(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	if !s.handleMessage([]byte(`{"channel":{"alternatives":[{"transcript":""}]}}`)) {
		t.Fatalf("empty transcript should not stop the session")
	}
	if !s.handleMessage([]byte(`not json`)) {
		t.Fatalf("unparseable payload should not stop the session")
	}

	select {
	case event := <-s.events:
		t.Fatalf("unexpected event: %+v", event)
	default:
	}
}

func TestHandleMessageErrorStopsSessionWithFinalEvent(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	if s.handleMessage([]byte(`{"type":"Error","message":"rate limited"}`)) {
		t.Fatalf("expected error payload to stop the session")
	}

	select {
	case event := <-s.events:
		if event.Kind != domain.TranscriptKindFinal || event.Text != "" {
			t.Fatalf("expected empty final event, got %+v", event)
		}
	default:
		t.Fatalf("expected a flush event before the error")
	}

	if err := s.sessionErr(); err == nil || err.Error() != "rate limited" {
		t.Fatalf("expected recorded error, got %v", err)
	}
}

func TestLiveSessionSendAudioClosed(t *testing.T) {
	t.Parallel()

	s := &liveSession{sendClosed: true}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestLiveSessionCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &liveSession{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestLiveSessionRecordErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &liveSession{}
	s.recordErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.sessionErr() != nil {
		t.Fatalf("expected normal close to be ignored")
	}

	s.recordErr(errors.New("boom"))
	if s.sessionErr() == nil || s.sessionErr().Error() != "boom" {
		t.Fatalf("expected real error to be captured")
	}
}

func TestLiveSessionRecordErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &liveSession{}
	s.recordErr(errors.New("first"))
	s.recordErr(errors.New("second"))
	if s.sessionErr() == nil || s.sessionErr().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}
