package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.txt")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestEngineAppliesAliasAndSubstitutionRules(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
# fix a name the transcriber keeps mangling
mood log => MoodLog
# strip hesitation fillers
s/\bum+,?\s*/ /g
`)

	engine, err := NewEngine(path, 0)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.Apply("um, today I opened mood log again")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != " today I opened MoodLog again" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestEngineAliasMatchingIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "gonna => going to\n")

	engine, err := NewEngine(path, 0)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.Apply("Gonna write tonight, gonna keep it short")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != "going to write tonight, going to keep it short" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestEngineRepeatsPassesUntilStable(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "kinda => kind of\nkind of tired => exhausted\n")

	engine, err := NewEngine(path, 5)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.Apply("kinda tired")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != "exhausted" {
		t.Fatalf("expected chained rules to settle, got %q", got)
	}
}

func TestEngineAliasStartingWithSIsNotASubstitution(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "sad-ish => a bit down\n")

	engine, err := NewEngine(path, 0)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.Apply("feeling sad-ish today")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != "feeling a bit down today" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestSubstitutionWithoutGlobalFlagReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	r, err := compileSubstitution(`s/very/really/`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, changed := r.apply("very very tired")
	if !changed {
		t.Fatalf("expected changed=true")
	}
	if got != "really very tired" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestCompileSubstitutionRejectsUnknownFlag(t *testing.T) {
	t.Parallel()

	if _, err := compileSubstitution(`s/foo/bar/x`); err == nil {
		t.Fatalf("expected unsupported flag error")
	}
}

func TestCompileRulesRejectsUnrecognizedLine(t *testing.T) {
	t.Parallel()

	if _, err := compileRules("this is not a rule"); err == nil {
		t.Fatalf("expected unsupported rule format error")
	}
}

func TestNewEngineMissingFileIsPassThrough(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(filepath.Join(t.TempDir(), "absent.txt"), 0)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.Apply("left alone")
	if err != nil || got != "left alone" {
		t.Fatalf("expected pass-through, got %q %v", got, err)
	}
}
