// Package recording builds Recording values from finished capture clips.
// It is pure with respect to stores: nothing here persists anything.
package recording

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"moodlog/internal/audio"
	"moodlog/internal/domain"
)

// New constructs a Recording from a finished clip plus optional transcript
// and sentiment. The id is assigned here and never changes afterwards.
//
// Duration is derived from the clip: header probing first, then a full
// scan of the audio payload when the header is unreliable. A clip whose
// duration cannot be determined still gets a usable playback handle with
// duration 0.
func New(blob []byte, tags []string, transcript string, sentiment *domain.SentimentScore) *domain.Recording {
	rec := &domain.Recording{
		ID:         uuid.NewString(),
		Blob:       blob,
		Transcript: transcript,
		Sentiment:  sentiment,
		Tags:       tags,
		CreatedAt:  time.Now().UnixMilli(),
		State:      domain.SyncStateDraft,
	}
	if tags == nil {
		rec.Tags = []string{}
	}

	rec.Duration = clipDuration(blob)
	attachHandle(rec)
	return rec
}

// Hydrate rebuilds the derived audio handle for a recording loaded from a
// store. A duration already known on the record is never regressed by a
// worse probe result.
func Hydrate(rec *domain.Recording) {
	if rec == nil {
		return
	}
	if rec.Blob != nil {
		rec.Duration = domain.BetterDuration(rec.Duration, clipDuration(rec.Blob))
	}
	attachHandle(rec)
}

func clipDuration(blob []byte) float64 {
	if len(blob) == 0 {
		return 0
	}
	if d, err := audio.ProbeDuration(blob); err == nil && d > 0 {
		return d
	}
	if d, err := audio.DecodeDuration(blob); err == nil && d > 0 {
		return d
	}
	return 0
}

func attachHandle(rec *domain.Recording) {
	if rec.Blob == nil {
		rec.Audio = nil
		return
	}
	rec.Audio = &domain.AudioHandle{
		Duration: rec.Duration,
		MIMEType: http.DetectContentType(rec.Blob),
	}
}
