package progress_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gemdesk/internal/logging"
	"gemdesk/internal/progress"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 6, 0, time.FixedZone("IST", 5*3600+1800))
}

func newStore(t *testing.T) *progress.Store {
	t.Helper()
	store := progress.NewStore(filepath.Join(t.TempDir(), "progress.json"), logging.NewNop())
	store.SetClock(fixedClock)
	return store
}

func TestLoadInitializesMissingDocument(t *testing.T) {
	store := newStore(t)

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %v", doc)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("expected document to be created: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("expected {}, got %q", data)
	}
}

func TestUpdateFileStatusStampsUTC(t *testing.T) {
	store := newStore(t)

	if err := store.UpdateFileStatus("batch1.xlsx", progress.StatusRunning, 0, 0); err != nil {
		t.Fatalf("UpdateFileStatus: %v", err)
	}
	if err := store.UpdateFileStatus("batch1.xlsx", progress.StatusCompleted, 4, 1); err != nil {
		t.Fatalf("UpdateFileStatus: %v", err)
	}

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := doc["batch1.xlsx"]
	want := progress.Record{Status: progress.StatusCompleted, Inserted: 4, Failed: 1, Updated: "2024-03-09 08:35:06"}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestRecordFailureThenSuccessClearsMessage(t *testing.T) {
	store := newStore(t)

	if err := store.RecordFailure("bad.xlsx", 1, 0, "missing contract_id column"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	doc, _ := store.Load()
	if doc["bad.xlsx"].Message == "" || doc["bad.xlsx"].Status != progress.StatusFailed {
		t.Fatalf("unexpected failure record: %+v", doc["bad.xlsx"])
	}

	if err := store.UpdateFileStatus("bad.xlsx", progress.StatusCompleted, 2, 0); err != nil {
		t.Fatalf("UpdateFileStatus: %v", err)
	}
	doc, _ = store.Load()
	if doc["bad.xlsx"].Message != "" {
		t.Fatalf("expected message cleared, got %q", doc["bad.xlsx"].Message)
	}
}

func TestMarkIdleWritesSystemEntry(t *testing.T) {
	store := newStore(t)
	if err := store.UpdateFileStatus("old.xlsx", progress.StatusCompleted, 1, 0); err != nil {
		t.Fatalf("UpdateFileStatus: %v", err)
	}
	if err := store.MarkIdle(""); err != nil {
		t.Fatalf("MarkIdle: %v", err)
	}

	raw, err := store.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	system := decoded[progress.SystemKey]
	if system["status"] != "idle" || system["message"] != "No pending files" {
		t.Fatalf("unexpected _system entry: %v", system)
	}
	if decoded["old.xlsx"]["status"] != "completed" {
		t.Fatalf("history should accumulate, got %v", decoded)
	}
}

func TestRawWithoutDocument(t *testing.T) {
	store := newStore(t)
	raw, err := store.Raw()
	if err != nil || string(raw) != "{}" {
		t.Fatalf("Raw = %q, %v", raw, err)
	}
}

func TestConcurrentUpdatesKeepEveryEntry(t *testing.T) {
	store := newStore(t)
	var wg sync.WaitGroup
	names := []string{"a.xlsx", "b.xlsx", "c.xlsx", "d.xlsx", "e.xlsx"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := store.UpdateFileStatus(name, progress.StatusCompleted, 1, 0); err != nil {
				t.Errorf("UpdateFileStatus(%s): %v", name, err)
			}
		}(name)
	}
	wg.Wait()

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != len(names) {
		t.Fatalf("expected %d entries, got %d", len(names), len(doc))
	}
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	store := newStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
