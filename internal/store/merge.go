package store

import "moodlog/internal/domain"

// mergeRemote reconciles remote metadata into the local set by id and
// returns the merged list plus the ids whose audio bytes still need to be
// fetched.
//
// Field rules: remote scalars win, but the local blob and audio handle are
// preserved unless the remote carries a binary reference different from
// the one the local copy was fetched under. Duration keeps the more
// informative of the two candidates. Records present only locally are
// retained; absence from a server listing is never treated as deletion.
func mergeRemote(local []domain.Recording, remotes []domain.Recording) ([]domain.Recording, []string) {
	merged := make([]domain.Recording, len(local))
	byID := make(map[string]int, len(local))
	for i, rec := range local {
		merged[i] = rec
		byID[rec.ID] = i
	}

	needBlob := make(map[string]bool)
	for _, remote := range remotes {
		if remote.ID == "" {
			continue
		}

		idx, exists := byID[remote.ID]
		if !exists {
			adopted := remote.Clone()
			adopted.Blob = nil
			adopted.Audio = nil
			if adopted.Saved() {
				adopted.State = domain.SyncStateSaved
			}
			byID[adopted.ID] = len(merged)
			merged = append(merged, adopted)
			if adopted.RemoteRef != "" {
				needBlob[adopted.ID] = true
			}
			continue
		}

		merged[idx] = mergeRecord(merged[idx], remote)
		if merged[idx].Blob == nil && merged[idx].RemoteRef != "" {
			needBlob[merged[idx].ID] = true
		} else {
			delete(needBlob, merged[idx].ID)
		}
	}

	ids := make([]string, 0, len(needBlob))
	for _, rec := range merged {
		if needBlob[rec.ID] {
			ids = append(ids, rec.ID)
		}
	}
	return merged, ids
}

// mergeRecord folds remote metadata into an existing record. Last writer
// wins per field, not per record.
func mergeRecord(existing, remote domain.Recording) domain.Recording {
	out := existing.Clone()

	out.Transcript = remote.Transcript
	if remote.Sentiment != nil {
		s := *remote.Sentiment
		out.Sentiment = &s
	}
	if remote.Tags != nil {
		out.Tags = append([]string(nil), remote.Tags...)
	}
	if remote.CreatedAt != 0 {
		out.CreatedAt = remote.CreatedAt
	}
	out.Duration = domain.BetterDuration(existing.Duration, remote.Duration)

	if remote.RemoteRef != "" {
		if existing.RemoteRef != "" && remote.RemoteRef != existing.RemoteRef {
			// The backend re-bound this id to new bytes; the cached blob
			// no longer matches and must be refetched.
			out.Blob = nil
			out.Audio = nil
		}
		out.RemoteRef = remote.RemoteRef
	}

	if out.Audio != nil {
		out.Audio.Duration = out.Duration
	}
	if out.Saved() {
		out.State = domain.SyncStateSaved
	}
	return out
}
