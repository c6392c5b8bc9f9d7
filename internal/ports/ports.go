package ports

import (
	"context"
	"io"

	"moodlog/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// SentimentAnalyzer scores transcript text. Implementations are opaque to
// the rest of the system; an empty transcript yields a nil score.
type SentimentAnalyzer interface {
	Analyze(text string) *domain.SentimentScore
}

// LocalStore is durable key-value persistence of recordings, keyed by id.
// Put is an upsert. Any operation may fail; callers treat failures as
// non-fatal and keep operating on in-memory state.
type LocalStore interface {
	List(ctx context.Context) ([]domain.Recording, error)
	Put(ctx context.Context, rec domain.Recording) error
	Delete(ctx context.Context, id string) error
}

// RemoteStore is the backend recordings API. FetchAll returns metadata
// only and never implicitly fetches binaries; FetchBlob resolves a remote
// ref to bytes independently.
type RemoteStore interface {
	FetchAll(ctx context.Context) ([]domain.Recording, error)
	Upload(ctx context.Context, rec domain.Recording) (domain.Recording, error)
	Remove(ctx context.Context, id string) error
	FetchBlob(ctx context.Context, ref string) ([]byte, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	LiveSentiment(score *domain.SentimentScore)
	RecordingsChanged()
	SessionError(code domain.ErrorCode, detail string)
}
