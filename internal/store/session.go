package store

import (
	"context"
	"errors"
	"sync"

	"moodlog/internal/domain"
)

var ErrNoSuchDraft = errors.New("no draft with that id")

// SessionBuffer holds recordings captured this session that have not been
// saved to the archive. Drafts live only in memory: navigating away or
// quitting the app discards them, by design. A draft never appears in the
// Store until it is promoted.
type SessionBuffer struct {
	store *Store

	mu     sync.Mutex
	drafts []domain.Recording
}

func NewSessionBuffer(store *Store) *SessionBuffer {
	return &SessionBuffer{store: store}
}

// Append adds a freshly captured recording to the draft list, newest
// first. An existing draft with the same id is replaced.
func (b *SessionBuffer) Append(rec domain.Recording) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.drafts {
		if b.drafts[i].ID == rec.ID {
			b.drafts[i] = rec
			return
		}
	}
	b.drafts = append([]domain.Recording{rec}, b.drafts...)
}

// Drafts returns a copy of the current draft list.
func (b *SessionBuffer) Drafts() []domain.Recording {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Recording, len(b.drafts))
	for i, rec := range b.drafts {
		out[i] = rec.Clone()
	}
	return out
}

// Discard drops a draft without touching any store. Returns false if the
// id is not a draft.
func (b *SessionBuffer) Discard(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(id)
}

// Promote hands a draft to the Store's upload-and-save protocol. The
// draft leaves the buffer as soon as the Store owns it, even if the
// upload itself fails: the record is then visible in the archive as
// un-saved and retryable there, never in two lists at once.
func (b *SessionBuffer) Promote(ctx context.Context, id string) error {
	b.mu.Lock()
	var rec *domain.Recording
	for i := range b.drafts {
		if b.drafts[i].ID == id {
			r := b.drafts[i].Clone()
			rec = &r
			break
		}
	}
	b.mu.Unlock()

	if rec == nil {
		return ErrNoSuchDraft
	}

	err := b.store.UploadAndSave(ctx, *rec)

	b.mu.Lock()
	b.removeLocked(id)
	b.mu.Unlock()
	return err
}

// Len reports the number of drafts.
func (b *SessionBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.drafts)
}

func (b *SessionBuffer) removeLocked(id string) bool {
	for i := range b.drafts {
		if b.drafts[i].ID == id {
			b.drafts = append(b.drafts[:i], b.drafts[i+1:]...)
			return true
		}
	}
	return false
}
