// Package remote talks to the recordings backend. It carries metadata and
// raw audio bytes only; live playback handles never cross this boundary.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moodlog/internal/domain"
)

const uploadTimestampLayout = "2006-01-02 15:04:05"

// Config configures the backend client.
type Config struct {
	BaseURL        string
	Token          string // optional, sent as Bearer
	TimeoutSeconds int    // default 60
}

// Client implements ports.RemoteStore over the recordings HTTP API.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// recordingMeta mirrors the JSON shape used by the backend. Timestamps and
// tags arrive in more than one historical encoding, so both are decoded
// leniently.
type recordingMeta struct {
	ID         string          `json:"id"`
	CreatedAt  json.RawMessage `json:"created_at"`
	BlobPath   string          `json:"blob_path"`
	Transcript string          `json:"transcript"`
	Sentiment  json.RawMessage `json:"sentiment"`
	Duration   float64         `json:"duration"`
	Tags       json.RawMessage `json:"tags"`
}

// FetchAll lists recording metadata. It never fetches binaries.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Recording, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.BaseURL+"/recordings", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	var metas []recordingMeta
	if err := json.Unmarshal(body, &metas); err != nil {
		return nil, fmt.Errorf("decode recordings list: %w", err)
	}

	out := make([]domain.Recording, 0, len(metas))
	for _, meta := range metas {
		out = append(out, meta.toDomain())
	}
	return out, nil
}

// Upload sends a sanitized recording as multipart form data and returns
// the backend's metadata, including the stored blob path.
func (c *Client) Upload(ctx context.Context, rec domain.Recording) (domain.Recording, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if len(rec.Blob) > 0 {
		part, err := writer.CreateFormFile("audio", clipFileName(rec))
		if err != nil {
			return domain.Recording{}, fmt.Errorf("create audio part: %w", err)
		}
		if _, err := part.Write(rec.Blob); err != nil {
			return domain.Recording{}, fmt.Errorf("write audio part: %w", err)
		}
	}

	tagsJSON, err := json.Marshal(tagsOrEmpty(rec.Tags))
	if err != nil {
		return domain.Recording{}, fmt.Errorf("marshal tags: %w", err)
	}

	_ = writer.WriteField("id", rec.ID)
	_ = writer.WriteField("tags", string(tagsJSON))
	_ = writer.WriteField("transcript", rec.Transcript)
	if rec.Sentiment != nil {
		sentimentJSON, err := json.Marshal(rec.Sentiment)
		if err != nil {
			return domain.Recording{}, fmt.Errorf("marshal sentiment: %w", err)
		}
		_ = writer.WriteField("sentiment", string(sentimentJSON))
	}
	_ = writer.WriteField("duration", strconv.FormatFloat(rec.Duration, 'f', -1, 64))
	_ = writer.WriteField("createdAt", time.UnixMilli(rec.CreatedAt).UTC().Format(uploadTimestampLayout))

	if err := writer.Close(); err != nil {
		return domain.Recording{}, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/recordings", &buf)
	if err != nil {
		return domain.Recording{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("upload recording %s: %w", rec.ID, err)
	}

	var meta recordingMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return domain.Recording{}, fmt.Errorf("decode upload response: %w", err)
	}
	if meta.ID == "" {
		meta.ID = rec.ID
	}
	return meta.toDomain(), nil
}

// Remove deletes the recording with the given id on the backend.
func (c *Client) Remove(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.cfg.BaseURL+"/recordings/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}

// FetchBlob resolves a blob path (absolute, or relative to the backend
// base) to raw audio bytes.
func (c *Client) FetchBlob(ctx context.Context, ref string) ([]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("empty blob ref")
	}

	target := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		target = c.cfg.BaseURL + "/" + strings.TrimLeft(ref, "/")
	}

	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", ref, err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func (m recordingMeta) toDomain() domain.Recording {
	rec := domain.Recording{
		ID:         m.ID,
		Transcript: m.Transcript,
		Duration:   m.Duration,
		Tags:       decodeTags(m.Tags),
		RemoteRef:  m.BlobPath,
		CreatedAt:  decodeTimestamp(m.CreatedAt),
		State:      domain.SyncStateSaved,
	}
	rec.Sentiment = decodeSentiment(m.Sentiment)
	if !rec.Saved() {
		rec.State = domain.SyncStatePersistedLocal
	}
	return rec
}

// decodeTimestamp accepts epoch milliseconds, RFC 3339, or the backend's
// "2006-01-02 15:04:05" form.
func decodeTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return millis
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0
	}
	for _, layout := range []string{time.RFC3339, uploadTimestampLayout} {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts.UnixMilli()
		}
	}
	return 0
}

// decodeSentiment accepts an object or a JSON-string-encoded object.
func decodeSentiment(raw json.RawMessage) *domain.SentimentScore {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var score domain.SentimentScore
	if err := json.Unmarshal(raw, &score); err == nil {
		return &score
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil || text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), &score); err != nil {
		return nil
	}
	return &score
}

// decodeTags accepts an array of strings or a JSON-string-encoded array.
func decodeTags(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}

	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		return tags
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if err := json.Unmarshal([]byte(text), &tags); err == nil {
			return tags
		}
	}
	return []string{}
}

func clipFileName(rec domain.Recording) string {
	ext := ".webm"
	if rec.Audio != nil {
		switch {
		case strings.Contains(rec.Audio.MIMEType, "wav"):
			ext = ".wav"
		case strings.Contains(rec.Audio.MIMEType, "ogg"):
			ext = ".ogg"
		}
	} else if bytes.HasPrefix(rec.Blob, []byte("RIFF")) {
		ext = ".wav"
	}
	return "recording-" + rec.ID + ext
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
