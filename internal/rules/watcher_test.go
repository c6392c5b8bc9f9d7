package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHotEngineReloadsOnFileChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.txt")
	if err := os.WriteFile(path, []byte("hello => hi\n"), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	h, err := NewHotEngine(path, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("new hot engine: %v", err)
	}
	defer h.Close()

	got, err := h.Apply("hello there")
	if err != nil || got != "hi there" {
		t.Fatalf("initial rules not applied: %q %v", got, err)
	}

	if err := os.WriteFile(path, []byte("hello => howdy\n"), 0o644); err != nil {
		t.Fatalf("rewrite rules: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err = h.Apply("hello there")
		if err == nil && got == "howdy there" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("rules never reloaded, last output %q", got)
}

func TestHotEngineKeepsOldRulesOnBrokenEdit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.txt")
	if err := os.WriteFile(path, []byte("hello => hi\n"), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	h, err := NewHotEngine(path, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("new hot engine: %v", err)
	}
	defer h.Close()

	if err := os.WriteFile(path, []byte("not a rule line\n"), 0o644); err != nil {
		t.Fatalf("rewrite rules: %v", err)
	}

	// The watcher may take a moment to see the write; the old rule set
	// must stay in effect throughout.
	time.Sleep(200 * time.Millisecond)
	got, err := h.Apply("hello there")
	if err != nil || got != "hi there" {
		t.Fatalf("previous rule set lost after broken edit: %q %v", got, err)
	}
}

func TestHotEngineEmptyPathIsPassThrough(t *testing.T) {
	t.Parallel()

	h, err := NewHotEngine("", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("new hot engine: %v", err)
	}
	defer h.Close()

	got, err := h.Apply("unchanged")
	if err != nil || got != "unchanged" {
		t.Fatalf("expected pass-through, got %q %v", got, err)
	}
}

func TestHotEngineCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	h, err := NewHotEngine("", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("new hot engine: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
