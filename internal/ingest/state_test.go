package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestState_NewAndSave(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "nested", "state.json")

	s, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if s.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set on a new state")
	}

	s.MarkIngested("conv-26_session_1", 10)
	s.MarkIngested("conv-26_session_2", 5)
	s.MarkIngested("conv-26_session_1", 10)

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("state file not written: %v", err)
	}

	loaded, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if len(loaded.Conversations) != 2 {
		t.Errorf("expected 2 conversations, got %d", len(loaded.Conversations))
	}
	if loaded.TurnsIngested != 15 {
		t.Errorf("expected 15 turns, got %d", loaded.TurnsIngested)
	}
	if !loaded.IsIngested("conv-26_session_2") {
		t.Error("expected conv-26_session_2 to be ingested")
	}
	if loaded.IsIngested("conv-26_session_3") {
		t.Error("expected conv-26_session_3 not to be ingested")
	}
	if loaded.LastProcessedAt.IsZero() {
		t.Error("expected LastProcessedAt to be set")
	}
}

func TestState_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadState(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/.locomo-ingest/state.json"); got != filepath.Join(home, ".locomo-ingest/state.json") {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := expandHome("/abs/state.json"); got != "/abs/state.json" {
		t.Errorf("expected absolute path untouched, got %q", got)
	}
}
