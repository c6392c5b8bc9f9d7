// Package sqlite persists recordings in a local SQLite database. It is
// pure CRUD keyed by recording id; merge logic lives in the recording
// store, not here.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"moodlog/internal/domain"
)

// Store is a durable key-value table of recordings.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database location under the user's
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "moodlog", "moodlog.sqlite")
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id         TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			duration   REAL NOT NULL DEFAULT 0,
			transcript TEXT NOT NULL DEFAULT '',
			sentiment  TEXT,
			tags       TEXT NOT NULL DEFAULT '[]',
			remote_ref TEXT NOT NULL DEFAULT '',
			audio      BLOB
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate recordings table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns every stored recording, metadata and audio bytes included,
// newest first.
func (s *Store) List(ctx context.Context) ([]domain.Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, duration, transcript, sentiment, tags, remote_ref, audio
		FROM recordings
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		var (
			rec           domain.Recording
			sentimentJSON sql.NullString
			tagsJSON      string
		)
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Duration, &rec.Transcript,
			&sentimentJSON, &tagsJSON, &rec.RemoteRef, &rec.Blob); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}

		if sentimentJSON.Valid && sentimentJSON.String != "" {
			var score domain.SentimentScore
			if err := json.Unmarshal([]byte(sentimentJSON.String), &score); err == nil {
				rec.Sentiment = &score
			}
		}
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			rec.Tags = []string{}
		}

		rec.State = domain.SyncStatePersistedLocal
		if rec.Saved() {
			rec.State = domain.SyncStateSaved
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Put inserts or replaces the recording keyed by its id.
func (s *Store) Put(ctx context.Context, rec domain.Recording) error {
	sentimentJSON, err := marshalSentiment(rec.Sentiment)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(tagsOrEmpty(rec.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, created_at, duration, transcript, sentiment, tags, remote_ref, audio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			duration   = excluded.duration,
			transcript = excluded.transcript,
			sentiment  = excluded.sentiment,
			tags       = excluded.tags,
			remote_ref = excluded.remote_ref,
			audio      = COALESCE(excluded.audio, recordings.audio)
	`, rec.ID, rec.CreatedAt, rec.Duration, rec.Transcript, sentimentJSON, string(tagsJSON), rec.RemoteRef, rec.Blob)
	if err != nil {
		return fmt.Errorf("put recording %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the recording with the given id. Deleting an absent id is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}

func marshalSentiment(score *domain.SentimentScore) (any, error) {
	if score == nil {
		return nil, nil
	}
	raw, err := json.Marshal(score)
	if err != nil {
		return nil, fmt.Errorf("marshal sentiment: %w", err)
	}
	return string(raw), nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
