// Package store owns the canonical in-memory set of recordings and the
// protocols that keep it reconciled with local and remote persistence.
// All mutation of recordings flows through this package.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"moodlog/internal/domain"
	"moodlog/internal/ports"
	"moodlog/internal/recording"
)

// Store is the process-wide recording registry. It is constructed once at
// startup and handed to consumers explicitly; there is no package-level
// instance.
//
// Mutations update the in-memory set synchronously and persist
// asynchronously with respect to the caller's view: a record may be
// visible before it is durable and gains its remote ref in place later.
type Store struct {
	local  ports.LocalStore
	remote ports.RemoteStore
	events ports.EventSink
	log    zerolog.Logger

	mu        sync.Mutex
	recs      []domain.Recording
	uploading map[string]struct{}

	sortAscending bool
}

// Option configures a Store.
type Option func(*Store)

// WithAscendingOrder makes List return oldest recordings first.
func WithAscendingOrder() Option {
	return func(s *Store) { s.sortAscending = true }
}

func New(local ports.LocalStore, remote ports.RemoteStore, events ports.EventSink, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		local:     local,
		remote:    remote,
		events:    events,
		log:       log.With().Str("component", "store").Logger(),
		uploading: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the local cache, publishes it immediately so the UI is
// usable offline, then reconciles with the backend. A failing remote is a
// degraded mode, not an error; Init only logs.
func (s *Store) Init(ctx context.Context) {
	locals, err := s.local.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("local cache unavailable, starting empty")
		locals = nil
	}
	for i := range locals {
		recording.Hydrate(&locals[i])
	}

	// The cache folds into whatever is already in memory, keyed by id.
	// Recordings captured while Init is still running are newer than any
	// cached copy and must not be clobbered.
	s.mu.Lock()
	for _, rec := range locals {
		if _, ok := s.indexOf(rec.ID); ok {
			continue
		}
		s.recs = append(s.recs, rec)
	}
	s.mu.Unlock()
	s.events.RecordingsChanged()

	s.reconcile(ctx)
}

// Sync re-fetches remote metadata, merges it, and pushes local recordings
// that have bytes but no confirmed upload. Safe to invoke concurrently;
// an in-flight upload for an id is never duplicated.
func (s *Store) Sync(ctx context.Context) {
	s.reconcile(ctx)

	for _, candidate := range s.claimUnsaved() {
		if err := s.uploadClaimed(ctx, candidate); err != nil {
			s.log.Warn().Err(err).Str("id", candidate.ID).Msg("sync upload failed, will retry on next sync")
		}
	}
}

// reconcile fetches the remote listing and merges it into memory.
func (s *Store) reconcile(ctx context.Context) {
	remotes, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("remote unreachable, operating on local set")
		return
	}

	s.mu.Lock()
	merged, missing := mergeRemote(s.recs, remotes)
	s.recs = merged
	s.mu.Unlock()
	s.events.RecordingsChanged()

	for _, id := range missing {
		go s.resolveBlob(ctx, id)
	}
}

// Add inserts a recording at the head of the in-memory list. Inserting an
// id that already exists replaces that record instead of duplicating it.
// Durability is deferred until an explicit save.
func (s *Store) Add(rec domain.Recording) {
	s.mu.Lock()
	if idx, ok := s.indexOf(rec.ID); ok {
		s.recs[idx] = rec
	} else {
		s.recs = append([]domain.Recording{rec}, s.recs...)
	}
	s.mu.Unlock()
	s.events.RecordingsChanged()
}

// UploadAndSave makes a recording durable: local store first, then the
// backend. The in-memory record gains its remote ref in place on success.
// On failure the record stays in memory (and in the local store) with no
// remote ref so the caller can retry; it is never discarded.
func (s *Store) UploadAndSave(ctx context.Context, rec domain.Recording) error {
	s.mu.Lock()
	idx, ok := s.indexOf(rec.ID)
	if !ok {
		s.recs = append([]domain.Recording{rec}, s.recs...)
		idx = 0
	} else {
		s.recs[idx] = rec
	}
	current := s.recs[idx]
	if current.Saved() {
		s.mu.Unlock()
		return nil
	}
	if _, busy := s.uploading[current.ID]; busy {
		s.mu.Unlock()
		return nil
	}
	s.uploading[current.ID] = struct{}{}
	s.recs[idx].State = domain.SyncStatePersistingLocal
	s.mu.Unlock()
	s.events.RecordingsChanged()

	return s.uploadClaimed(ctx, current)
}

// uploadClaimed persists and uploads a record whose id has already been
// placed in the uploading set. It always releases the claim.
func (s *Store) uploadClaimed(ctx context.Context, rec domain.Recording) error {
	defer func() {
		s.mu.Lock()
		delete(s.uploading, rec.ID)
		s.mu.Unlock()
	}()

	locallyDurable := true
	if err := s.local.Put(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("id", rec.ID).Msg("local persist failed, keeping record in memory")
		s.setState(rec.ID, domain.SyncStateDraft)
		locallyDurable = false
	} else {
		s.setState(rec.ID, domain.SyncStateUploading)
	}

	meta, err := s.remote.Upload(ctx, sanitize(rec))
	if err != nil {
		// The state must not claim durability the local put never delivered.
		if locallyDurable {
			s.setState(rec.ID, domain.SyncStatePersistedLocal)
		} else {
			s.setState(rec.ID, domain.SyncStateDraft)
		}
		return err
	}

	s.mu.Lock()
	idx, ok := s.indexOf(rec.ID)
	if !ok {
		// Deleted while the upload was in flight; drop the result.
		s.mu.Unlock()
		return nil
	}
	s.recs[idx] = mergeRecord(s.recs[idx], meta)
	saved := s.recs[idx]
	s.mu.Unlock()
	s.events.RecordingsChanged()

	if err := s.local.Put(ctx, saved); err != nil {
		s.log.Warn().Err(err).Str("id", saved.ID).Msg("failed to persist remote ref locally")
	}
	if saved.Blob == nil && saved.RemoteRef != "" {
		go s.resolveBlob(ctx, saved.ID)
	}
	return nil
}

// Delete removes a recording everywhere it is known to live. Removal from
// memory and the local store is optimistic; a failing remote delete is
// reported to the caller but does not resurrect the record.
// A record that was never saved stays a purely local affair: the remote
// adapter is not called at all.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx, ok := s.indexOf(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	wasSaved := s.recs[idx].Saved()
	s.recs = append(s.recs[:idx], s.recs[idx+1:]...)
	s.mu.Unlock()
	s.events.RecordingsChanged()

	if err := s.local.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("local delete failed")
	}

	if !wasSaved {
		return nil
	}
	if err := s.remote.Remove(ctx, id); err != nil {
		// The record may still exist server-side and can reappear via a
		// future sync from another client; we accept that resurrection
		// rather than keeping tombstones.
		s.log.Warn().Err(err).Str("id", id).Msg("remote delete failed, record may resurrect on sync")
		return err
	}
	return nil
}

// List returns a display-ordered copy of the recordings.
func (s *Store) List() []domain.Recording {
	s.mu.Lock()
	out := make([]domain.Recording, len(s.recs))
	for i, rec := range s.recs {
		out[i] = rec.Clone()
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if s.sortAscending {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// Get returns the recording with the given id, if present.
func (s *Store) Get(id string) (domain.Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexOf(id); ok {
		return s.recs[idx].Clone(), true
	}
	return domain.Recording{}, false
}

// resolveBlob fetches the bytes behind a record's remote ref and attaches
// them in place. If the record was deleted while the fetch was in flight
// the result is dropped.
func (s *Store) resolveBlob(ctx context.Context, id string) {
	s.mu.Lock()
	idx, ok := s.indexOf(id)
	if !ok || s.recs[idx].RemoteRef == "" || s.recs[idx].Blob != nil {
		s.mu.Unlock()
		return
	}
	ref := s.recs[idx].RemoteRef
	s.mu.Unlock()

	blob, err := s.remote.FetchBlob(ctx, ref)
	if err != nil {
		s.log.Warn().Err(err).Str("id", id).Str("ref", ref).Msg("blob fetch failed")
		return
	}

	s.mu.Lock()
	idx, ok = s.indexOf(id)
	if !ok {
		s.mu.Unlock()
		return
	}
	rec := s.recs[idx]
	rec.Blob = blob
	recording.Hydrate(&rec)
	s.recs[idx] = rec
	s.mu.Unlock()
	s.events.RecordingsChanged()

	if err := s.local.Put(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("failed to cache fetched blob locally")
	}
}

// claimUnsaved snapshots records that have bytes but no confirmed upload,
// marking each as in flight so concurrent syncs skip them.
func (s *Store) claimUnsaved() []domain.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Recording
	for i, rec := range s.recs {
		if rec.Saved() || rec.Blob == nil {
			continue
		}
		if _, busy := s.uploading[rec.ID]; busy {
			continue
		}
		s.uploading[rec.ID] = struct{}{}
		s.recs[i].State = domain.SyncStateUploading
		out = append(out, s.recs[i])
	}
	return out
}

func (s *Store) setState(id string, state domain.SyncState) {
	s.mu.Lock()
	if idx, ok := s.indexOf(id); ok {
		s.recs[idx].State = state
	}
	s.mu.Unlock()
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) (int, bool) {
	for i, rec := range s.recs {
		if rec.ID == id {
			return i, true
		}
	}
	return 0, false
}

// sanitize strips the live playback handle and runtime state before a
// record crosses the wire; only metadata and the raw bytes are sent.
func sanitize(rec domain.Recording) domain.Recording {
	out := rec.Clone()
	out.Audio = nil
	out.State = ""
	return out
}
