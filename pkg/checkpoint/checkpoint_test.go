package checkpoint

import (
	"path/filepath"
	"testing"
)

func TestMarkCompletedIsIdempotent(t *testing.T) {
	s := NewState("play.yml", "inv.yml", []byte("content"))
	s.MarkCompleted("install nginx", "web1")
	s.MarkCompleted("install nginx", "web1")
	if len(s.Completed) != 1 {
		t.Fatalf("expected 1 completed entry, got %d", len(s.Completed))
	}
	if !s.IsCompleted("install nginx", "web1") {
		t.Error("expected task-host pair to be marked completed")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	s := NewState("play.yml", "inv.yml", []byte("content"))
	s.MarkCompleted("b task", "host2")
	s.MarkCompleted("a task", "host1")
	s.SetVariable("host1", "result", "ok")

	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.PlaybookHash != s.PlaybookHash {
		t.Error("playbook hash did not round-trip")
	}
	if len(decoded.Completed) != 2 {
		t.Fatalf("expected 2 completed entries, got %d", len(decoded.Completed))
	}
	// Marshal sorts completed pairs for determinism.
	if decoded.Completed[0].Task != "a task" {
		t.Errorf("expected sorted order, got %+v", decoded.Completed)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	s := NewState("play.yml", "inv.yml", []byte("content"))
	s.MarkCompleted("z", "h2")
	s.MarkCompleted("a", "h1")

	first, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	second, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("expected identical marshal output for identical state")
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "checkpoint.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	s := NewState("play.yml", "inv.yml", []byte("content"))
	s.MarkCompleted("install nginx", "web1")
	if err := store.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected loaded state, got nil")
	}
	if !loaded.IsCompleted("install nginx", "web1") {
		t.Error("expected loaded state to retain completed task")
	}
}

func TestResumeRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "checkpoint.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	s := NewState("play.yml", "inv.yml", []byte("original content"))
	if err := store.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Resume([]byte("changed content")); err == nil {
		t.Error("expected hash mismatch error on resume")
	}
}

func TestResumeWithNoCheckpointReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "checkpoint.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	state, err := store.Resume([]byte("content"))
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state != nil {
		t.Error("expected nil state for a fresh checkpoint file")
	}
}
