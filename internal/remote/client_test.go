package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"moodlog/internal/domain"
)

func TestFetchAllDecodesLenientWireFormats(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/recordings" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"a","created_at":1700000000000,"blob_path":"/blobs/a.wav","transcript":"hi",
			 "sentiment":{"score":2,"comparative":1,"label":"Positive"},"duration":3.5,"tags":["x"]},
			{"id":"b","created_at":"2023-11-14 22:13:20","blob_path":"/blobs/b.wav","transcript":"",
			 "sentiment":"{\"score\":-4,\"comparative\":-2,\"label\":\"Negative\"}","duration":1,
			 "tags":"[\"y\",\"z\"]"}
		]`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	got, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	a := got[0]
	if a.ID != "a" || a.CreatedAt != 1700000000000 || a.RemoteRef != "/blobs/a.wav" {
		t.Fatalf("unexpected record a: %+v", a)
	}
	if a.Sentiment == nil || a.Sentiment.Label != domain.SentimentPositive {
		t.Fatalf("sentiment object not decoded: %+v", a.Sentiment)
	}
	if a.State != domain.SyncStateSaved {
		t.Fatalf("record with blob path must be saved, got %s", a.State)
	}

	b := got[1]
	if b.CreatedAt != 1700000000000 {
		t.Fatalf("datetime timestamp not decoded: %d", b.CreatedAt)
	}
	if b.Sentiment == nil || b.Sentiment.Score != -4 {
		t.Fatalf("string-encoded sentiment not decoded: %+v", b.Sentiment)
	}
	if !reflect.DeepEqual(b.Tags, []string{"y", "z"}) {
		t.Fatalf("string-encoded tags not decoded: %v", b.Tags)
	}
	if b.Blob != nil {
		t.Fatalf("fetchAll must never carry binaries")
	}
}

func TestUploadSendsMultipartAndReturnsMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/recordings" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		if got := r.FormValue("id"); got != "rec-9" {
			t.Errorf("unexpected id field: %q", got)
		}
		if got := r.FormValue("tags"); got != `["mood"]` {
			t.Errorf("unexpected tags field: %q", got)
		}
		if got := r.FormValue("transcript"); got != "a fine day" {
			t.Errorf("unexpected transcript field: %q", got)
		}
		if got := r.FormValue("duration"); got != "2.5" {
			t.Errorf("unexpected duration field: %q", got)
		}
		if got := r.FormValue("createdAt"); got != "2023-11-14 22:13:20" {
			t.Errorf("unexpected createdAt field: %q", got)
		}
		var score domain.SentimentScore
		if err := json.Unmarshal([]byte(r.FormValue("sentiment")), &score); err != nil || score.Score != 2 {
			t.Errorf("unexpected sentiment field: %q", r.FormValue("sentiment"))
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio part: %v", err)
			http.Error(w, "no audio", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if !strings.HasPrefix(header.Filename, "recording-rec-9") {
			t.Errorf("unexpected filename: %q", header.Filename)
		}
		audio, _ := io.ReadAll(file)
		if string(audio) != "RIFFfakebytes" {
			t.Errorf("unexpected audio payload: %q", audio)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"rec-9","blob_path":"/blobs/rec-9.wav","created_at":1700000000000,"duration":2.5}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	meta, err := client.Upload(context.Background(), domain.Recording{
		ID:         "rec-9",
		Blob:       []byte("RIFFfakebytes"),
		Transcript: "a fine day",
		Sentiment:  &domain.SentimentScore{Score: 2, Comparative: 0.5, Label: domain.SentimentPositive},
		Duration:   2.5,
		CreatedAt:  1700000000000,
		Tags:       []string{"mood"},
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if meta.RemoteRef != "/blobs/rec-9.wav" {
		t.Fatalf("expected blob path in response, got %+v", meta)
	}
}

func TestUploadRejectsServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Upload(context.Background(), domain.Recording{ID: "x", Blob: []byte("b")})
	if err == nil {
		t.Fatalf("expected upload error")
	}
	if !strings.Contains(err.Error(), "http 500") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRemoveEscapesID(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.Remove(context.Background(), "rec/1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if gotPath != "/recordings/rec%2F1" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestFetchBlobResolvesRelativeAndAbsoluteRefs(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blobs/a.wav" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("binary"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	relative, err := client.FetchBlob(context.Background(), "/blobs/a.wav")
	if err != nil {
		t.Fatalf("relative fetch failed: %v", err)
	}
	if string(relative) != "binary" {
		t.Fatalf("unexpected blob: %q", relative)
	}

	absolute, err := client.FetchBlob(context.Background(), server.URL+"/blobs/a.wav")
	if err != nil {
		t.Fatalf("absolute fetch failed: %v", err)
	}
	if string(absolute) != "binary" {
		t.Fatalf("unexpected blob: %q", absolute)
	}

	if _, err := client.FetchBlob(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty ref")
	}
}
