package domain

import "math"

// SentimentLabel classifies a scored transcript.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNegative SentimentLabel = "Negative"
	SentimentNeutral  SentimentLabel = "Neutral"
)

// LabelForScore maps a raw sentiment score onto a label. Scores within
// [-1, 1] are considered neutral.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score > 1:
		return SentimentPositive
	case score < -1:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// SentimentScore is the opaque result of scoring a transcript.
type SentimentScore struct {
	Score       float64        `json:"score"`
	Comparative float64        `json:"comparative"`
	Label       SentimentLabel `json:"label"`
}

// SyncState tracks where a recording sits in the persistence lifecycle.
type SyncState string

const (
	SyncStateDraft           SyncState = "draft"
	SyncStatePersistingLocal SyncState = "persisting_local"
	SyncStatePersistedLocal  SyncState = "persisted_local"
	SyncStateUploading       SyncState = "uploading"
	SyncStateSaved           SyncState = "saved"
	SyncStateDeleteRequested SyncState = "delete_requested"
	SyncStateDeleted         SyncState = "deleted"
)

// AudioHandle is a playable view over a recording's bytes. It is always
// derived from Blob and never the source of truth.
type AudioHandle struct {
	Duration float64 `json:"duration"`
	MIMEType string  `json:"mimeType"`
}

// Recording is one captured audio clip plus its derived metadata.
//
// ID is assigned once at creation and is the merge key between the local
// and remote representations. Blob may be nil for records whose metadata
// arrived from the backend before their bytes.
type Recording struct {
	ID         string          `json:"id"`
	Blob       []byte          `json:"-"`
	Audio      *AudioHandle    `json:"audio,omitempty"`
	Transcript string          `json:"transcript"`
	Sentiment  *SentimentScore `json:"sentiment,omitempty"`
	Duration   float64         `json:"duration"`
	CreatedAt  int64           `json:"createdAt"`
	Tags       []string        `json:"tags"`
	RemoteRef  string          `json:"remoteRef,omitempty"`
	State      SyncState       `json:"state"`
}

// Saved reports whether the recording has a confirmed remote binary.
func (r Recording) Saved() bool {
	return r.RemoteRef != ""
}

// HasKnownDuration reports whether Duration carries real information.
func (r Recording) HasKnownDuration() bool {
	return isInformative(r.Duration)
}

// Clone returns a copy safe to hand to callers. The blob is shared because
// recordings never mutate their bytes in place; slices and pointers that
// callers could mutate are copied.
func (r Recording) Clone() Recording {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Sentiment != nil {
		s := *r.Sentiment
		out.Sentiment = &s
	}
	if r.Audio != nil {
		a := *r.Audio
		out.Audio = &a
	}
	return out
}

// BetterDuration picks the more informative of two duration candidates:
// both finite and nonzero takes the max, one informative wins over none,
// and two uninformative values collapse to 0.
func BetterDuration(a, b float64) float64 {
	switch {
	case isInformative(a) && isInformative(b):
		return math.Max(a, b)
	case isInformative(a):
		return a
	case isInformative(b):
		return b
	default:
		return 0
	}
}

func isInformative(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}
