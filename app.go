package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"moodlog/internal/bootstrap"
	"moodlog/internal/config"
	"moodlog/internal/domain"
	"moodlog/internal/store"
	"moodlog/internal/usecase"
)

const (
	eventSession    = "moodlog:session"
	eventPartial    = "moodlog:partial"
	eventSentiment  = "moodlog:sentiment"
	eventRecordings = "moodlog:recordings"
	eventError      = "moodlog:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.JournalController
	recordings *store.Store
	drafts     *store.SessionBuffer
	cfg        config.Config
	services   *bootstrap.Services
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.recordings = services.Store
	a.drafts = services.Drafts

	// Local cache loads and remote reconciliation runs off the UI path;
	// the recordings event fires as soon as the cache is visible.
	go a.recordings.Init(ctx)

	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.services != nil {
		_ = a.services.Close()
	}
}

// StartRecording begins a capture/transcription session.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		a.SessionError(domain.ErrorCodeTranscription, err.Error())
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopRecording finalizes the take into a draft and returns it.
func (a *App) StopRecording() (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	rec, err := a.controller.Stop(a.ctx)
	if err != nil {
		if !errors.Is(err, usecase.ErrNoAudioCaptured) {
			a.SessionError(domain.ErrorCodeTranscription, err.Error())
		}
		return domain.Recording{}, err
	}
	return rec, nil
}

// AbortRecording discards an in-progress take without keeping the clip.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		a.SessionError(domain.ErrorCodeTranscription, err.Error())
		return err
	}
	return nil
}

// Drafts returns this session's unsaved takes, newest first.
func (a *App) Drafts() ([]domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.drafts.Drafts(), nil
}

// DiscardDraft drops an unsaved take.
func (a *App) DiscardDraft(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if !a.drafts.Discard(id) {
		return store.ErrNoSuchDraft
	}
	return nil
}

// SaveDraft persists a draft locally and uploads it to the backend.
func (a *App) SaveDraft(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.drafts.Promote(a.ctx, id); err != nil {
		if !errors.Is(err, store.ErrNoSuchDraft) {
			a.SessionError(domain.ErrorCodeRemoteStore, err.Error())
		}
		return err
	}
	return nil
}

// Recordings returns the archive in display order.
func (a *App) Recordings() ([]domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.recordings.List(), nil
}

// RecordingAudio returns a recording's audio bytes base64-encoded for
// playback, or an error if the bytes are not cached yet.
func (a *App) RecordingAudio(id string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	rec, ok := a.recordings.Get(id)
	if !ok {
		return "", fmt.Errorf("no recording with id %q", id)
	}
	if rec.Blob == nil {
		return "", fmt.Errorf("audio for %q is not available yet", id)
	}
	return base64.StdEncoding.EncodeToString(rec.Blob), nil
}

// DeleteRecording removes a recording locally and, if it was saved, from
// the backend.
func (a *App) DeleteRecording(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.recordings.Delete(a.ctx, id); err != nil {
		a.SessionError(domain.ErrorCodeRemoteStore, err.Error())
		return err
	}
	return nil
}

// SyncNow reconciles with the backend and retries pending uploads.
func (a *App) SyncNow() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.recordings.Sync(a.ctx)
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"backendURL":       a.cfg.Backend.BaseURL,
		"maxClipSeconds":   fmt.Sprintf("%.0f", a.cfg.Session.MaxClipDuration.Seconds()),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

// LiveSentiment emits the running sentiment score while recording.
func (a *App) LiveSentiment(score *domain.SentimentScore) {
	if a.ctx == nil || score == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSentiment, score)
}

// RecordingsChanged notifies the UI that the archive changed.
func (a *App) RecordingsChanged() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecordings, nil)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous take discarded"
	case domain.SessionReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.SessionReasonClipCaptured:
		return "Clip captured"
	case domain.SessionReasonClipCapturedNoText:
		return "Clip captured (no speech recognized)"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoAudioCaptured:
		return "No audio captured"
	case domain.SessionReasonRulesFailed:
		return "Clip captured (transcript rules failed)"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeRules:
		return "Transcript rules failed"
	case domain.ErrorCodeLocalStore:
		return "Local storage issue"
	case domain.ErrorCodeRemoteStore:
		return "Backend sync issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
