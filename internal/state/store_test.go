package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return Open(filepath.Join(dir, "supervisor_state.json"), filepath.Join(dir, "supervisor_state.lock"))
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Version != CurrentVersion {
		t.Errorf("expected version %d, got %d", CurrentVersion, snap.Version)
	}
	if snap.SyncCompleted {
		t.Error("fresh snapshot should not have sync marker set")
	}
	if snap.PoolMode {
		t.Error("fresh snapshot should default to solo mode")
	}
}

func TestLoad_NewerVersionRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "supervisor_state.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(path, filepath.Join(dir, "supervisor_state.lock"))
	if _, err := s.Load(); err == nil {
		t.Error("expected error loading newer-versioned state file")
	}
}

func TestUpdate_PersistsAndStampsVersion(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Update(func(snap *Snapshot) error {
		snap.PoolMode = true
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !snap.PoolMode {
		t.Error("update was not persisted")
	}
	if snap.Version != CurrentVersion {
		t.Errorf("expected version %d, got %d", CurrentVersion, snap.Version)
	}
}

func TestUpdate_WritesValidJSONDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "supervisor_state.json")
	s := Open(path, filepath.Join(dir, "supervisor_state.lock"))

	if _, err := s.Update(func(snap *Snapshot) error {
		snap.SyncCompleted = true
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading state file: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if doc["sync_completed"] != true {
		t.Error("expected sync_completed true in document")
	}

	// No leftover temp files from the atomic replace.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "supervisor_state.json" && e.Name() != "supervisor_state.lock" {
			t.Errorf("unexpected file left behind: %s", e.Name())
		}
	}
}

func TestUpdate_ErrorAbandonsWrite(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetPoolMode(true); err != nil {
		t.Fatal(err)
	}

	wantErr := os.ErrInvalid
	if _, err := s.Update(func(snap *Snapshot) error {
		snap.PoolMode = false
		return wantErr
	}); err == nil {
		t.Fatal("expected error from Update")
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.PoolMode {
		t.Error("failed update must not modify the persisted state")
	}
}

func TestMarkSyncCompleted_OneWay(t *testing.T) {
	s := newTestStore(t)
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	already, err := s.MarkSyncCompleted(first)
	if err != nil {
		t.Fatalf("MarkSyncCompleted: %v", err)
	}
	if already {
		t.Error("first marking should report already=false")
	}

	// Second caller lost the race: marker stays, timestamp unchanged.
	already, err = s.MarkSyncCompleted(first.Add(time.Hour))
	if err != nil {
		t.Fatalf("MarkSyncCompleted: %v", err)
	}
	if !already {
		t.Error("second marking should report already=true")
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.SyncCompleted {
		t.Error("marker should be set")
	}
	if !snap.SyncCompletedAt.Equal(first) {
		t.Errorf("completion time should keep first value, got %v", snap.SyncCompletedAt)
	}
}

func TestRecordRestart_AdvancesCooldownAndClearsZeroTimer(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := s.Update(func(snap *Snapshot) error {
		snap.ZeroActivitySince = now.Add(-5 * time.Minute)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.RecordRestart("zero hashrate sustained", now); err != nil {
		t.Fatalf("RecordRestart: %v", err)
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.LastRestartAt.Equal(now) {
		t.Errorf("expected LastRestartAt %v, got %v", now, snap.LastRestartAt)
	}
	if !snap.ZeroActivitySince.IsZero() {
		t.Error("restart should clear the zero-activity timer")
	}
	if len(snap.RestartEvents) != 1 {
		t.Fatalf("expected 1 restart event, got %d", len(snap.RestartEvents))
	}
	ev := snap.RestartEvents[0]
	if ev.Reason != "zero hashrate sustained" {
		t.Errorf("unexpected reason %q", ev.Reason)
	}
	if ev.ID == "" {
		t.Error("restart event should carry an ID")
	}
}

func TestRecordRestart_JournalCapped(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < maxRestartEvents+10; i++ {
		if err := s.RecordRestart("flapping", now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.RestartEvents) != maxRestartEvents {
		t.Errorf("expected journal capped at %d, got %d", maxRestartEvents, len(snap.RestartEvents))
	}
	// The newest events survive the cap.
	last := snap.RestartEvents[len(snap.RestartEvents)-1]
	wantLast := now.Add(time.Duration(maxRestartEvents+9) * time.Minute)
	if !last.At.Equal(wantLast) {
		t.Errorf("expected newest event at %v, got %v", wantLast, last.At)
	}
}
