package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"moodlog/internal/domain"
	"moodlog/internal/ports"
	"moodlog/internal/store"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrNoAudioCaptured = errors.New("no audio captured")
)

// Config controls journal capture behavior.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	// MaxClipDuration bounds a single take; a session that runs this long
	// is stopped and finalized as if the user had pressed stop.
	MaxClipDuration time.Duration
}

// JournalController orchestrates a capture session: microphone audio is
// teed into a clip buffer and a live transcription stream, and stopping
// finalizes the take into a draft recording in the session buffer.
type JournalController struct {
	audio     ports.AudioCapture
	provider  ports.TranscriptionProvider
	events    ports.EventSink
	drafts    *store.SessionBuffer
	finalizer clipFinalizer
	sentiment ports.SentimentAnalyzer
	cfg       Config

	mu      sync.Mutex
	current *activeSession
}

func NewJournalController(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	rules ports.RulesEngine,
	sentiment ports.SentimentAnalyzer,
	drafts *store.SessionBuffer,
	events ports.EventSink,
	cfg Config,
) *JournalController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.MaxClipDuration <= 0 {
		cfg.MaxClipDuration = 120 * time.Second
	}
	return &JournalController{
		audio:     audio,
		provider:  provider,
		events:    events,
		drafts:    drafts,
		finalizer: newClipFinalizer(rules, sentiment, events),
		sentiment: sentiment,
		cfg:       cfg,
	}
}

// Start begins a new capture/transcription session. An already running
// session is stopped and discarded first.
func (c *JournalController) Start(ctx context.Context) error {
	var previous *activeSession

	c.mu.Lock()
	if c.current != nil {
		previous = c.current
		c.current = nil
	}
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		return err
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return err
	}

	active := &activeSession{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		state:      domain.SessionStateRecording,
		clip:       &clipBuffer{},
		aggregator: newTranscriptAggregator(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}
	active.stopTimer = time.AfterFunc(c.cfg.MaxClipDuration, func() {
		c.autoStop(active)
	})

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	go consumeTranscriptionEvents(active.stream, active.aggregator, c.sentiment, c.events, active.eventsDone)
	go pumpAudioChunks(active.audio, active.stream, active.clip, c.cfg.ChunkSize, c.events, active.audioDone)

	reason := domain.SessionReasonRecordingStarted
	if previous != nil {
		reason = domain.SessionReasonRecordingRestarted
	}
	c.events.SessionStateChanged(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends an active session and finalizes the take into a draft
// recording. The draft is appended to the session buffer and returned.
func (c *JournalController) Stop(ctx context.Context) (domain.Recording, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.Recording{}, err
	}
	if !active.claimStop() {
		return domain.Recording{}, ErrNoActiveSession
	}

	active.stopTimer.Stop()
	active.setState(domain.SessionStateStopping)
	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonTranscribing)

	if err := active.audio.Stop(); err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, 4*time.Second)
	<-active.eventsDone
	<-active.audioDone

	pcm := active.clip.Bytes()
	if len(pcm) == 0 {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoAudioCaptured)
		return domain.Recording{}, ErrNoAudioCaptured
	}

	raw := active.aggregator.Raw()
	if raw == "" && streamErr != nil {
		// The clip is still good; only the text is missing.
		c.events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
	}

	rec, reason := c.finalizer.Finalize(pcm, raw, c.cfg.Audio)
	c.drafts.Append(rec)

	c.finishSession(active, domain.SessionStateIdle, reason)
	return rec, nil
}

// Abort cancels and discards an active session without keeping the clip.
func (c *JournalController) Abort() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}
	if !active.claimStop() {
		return ErrNoActiveSession
	}

	active.stopTimer.Stop()
	c.stopSession(active)
	c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Status returns the current capture status.
func (c *JournalController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	state := c.current.getState()
	return domain.Status{State: state, Active: state != domain.SessionStateIdle}
}

// autoStop fires when a session hits MaxClipDuration. The take is
// finalized exactly as a manual stop would, so nothing is lost when the
// user walks away mid-recording.
func (c *JournalController) autoStop(active *activeSession) {
	c.mu.Lock()
	isCurrent := c.current == active
	c.mu.Unlock()
	if !isCurrent {
		return
	}
	_, _ = c.Stop(context.Background())
}

func (c *JournalController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

func (c *JournalController) stopSession(active *activeSession) {
	active.stopTimer.Stop()
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
}

func (c *JournalController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason) {
	active.cancel()
	active.setState(state)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.events.SessionStateChanged(state, reason)
}
