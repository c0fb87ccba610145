// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/notechat/internal/transcript"
)

func testStore(t *testing.T) *TranscriptStore {
	t.Helper()
	s, err := NewTranscriptStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStoreWithDir failed: %v", err)
	}
	return s
}

func sampleTranscript(firstUserText string) *transcript.Transcript {
	tr := transcript.New()
	tr.AppendUserEntry(firstUserText, nil)
	e := tr.AppendAssistantEntry()
	e.ApplyText("the answer")
	e.CommitPending()
	return tr
}

// =============================================================================
// SAVE / LOAD TESTS
// =============================================================================

func TestSaveAndLoad(t *testing.T) {
	s := testStore(t)
	tr := sampleTranscript("what is the plan?")

	id, err := s.Save(tr)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != tr.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, tr.ID)
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(loaded.Entries))
	}
	swipe := loaded.Entries[1].SelectedSwipe()
	if swipe == nil || swipe.Content != "the answer" {
		t.Errorf("assistant swipe = %+v", swipe)
	}
}

func TestSaveDropsPendingResponse(t *testing.T) {
	s := testStore(t)
	tr := transcript.New()
	tr.AppendUserEntry("q", nil)
	e := tr.AppendAssistantEntry()
	e.ApplyText("half an answ") // still streaming, never committed

	id, err := s.Save(tr)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, entry := range loaded.Entries {
		if entry.Pending != nil {
			t.Error("pending response survived persistence")
		}
	}
}

func TestLoadMissing(t *testing.T) {
	s := testStore(t)
	if _, err := s.Load("no-such-id"); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("err = %v, want ErrTranscriptNotFound", err)
	}
}

func TestLoadByIndex(t *testing.T) {
	s := testStore(t)

	older := sampleTranscript("older")
	if _, err := s.Save(older); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	newer := sampleTranscript("newer")
	if _, err := s.Save(newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadByIndex(0)
	if err != nil {
		t.Fatalf("LoadByIndex failed: %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("index 0 = %q, want most recent %q", got.ID, newer.ID)
	}

	if _, err := s.LoadByIndex(99); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("out-of-range err = %v", err)
	}
}

// =============================================================================
// LIST / SEARCH TESTS
// =============================================================================

func TestListSkipsCorruptedFiles(t *testing.T) {
	s := testStore(t)
	if _, err := s.Save(sampleTranscript("good")); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(s.BaseDir, "corrupt.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 1 {
		t.Errorf("meta count = %d, want 1 (corrupt file skipped)", len(metas))
	}
	if metas[0].EntryCount != 2 {
		t.Errorf("EntryCount = %d", metas[0].EntryCount)
	}
	if !strings.Contains(metas[0].Preview, "good") {
		t.Errorf("Preview = %q", metas[0].Preview)
	}
}

func TestSearch(t *testing.T) {
	s := testStore(t)
	if _, err := s.Save(sampleTranscript("deploy checklist for friday")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(sampleTranscript("recipe ideas")); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search("DEPLOY")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || !strings.Contains(results[0].Preview, "deploy") {
		t.Errorf("results = %+v", results)
	}

	// Content match beyond title and preview
	results, err = s.Search("the answer")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("content search results = %d, want 2", len(results))
	}
}

// =============================================================================
// DELETE / LIMIT TESTS
// =============================================================================

func TestDelete(t *testing.T) {
	s := testStore(t)
	id, err := s.Save(sampleTranscript("gone soon"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(id); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("load after delete err = %v", err)
	}
	if err := s.Delete(id); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("double delete err = %v", err)
	}
}

func TestEnforceLimit(t *testing.T) {
	s := testStore(t)
	s.MaxTranscripts = 3

	var ids []string
	for i := 0; i < 5; i++ {
		tr := sampleTranscript("entry")
		tr.UpdatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		id, err := s.Save(tr)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		// Distinct mtimes so eviction order is deterministic
		time.Sleep(2 * time.Millisecond)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 3 {
		t.Fatalf("transcript count = %d, want 3 after eviction", len(metas))
	}
	// The earliest saves were evicted
	for _, id := range ids[:2] {
		if _, err := s.Load(id); !errors.Is(err, ErrTranscriptNotFound) {
			t.Errorf("oldest transcript %q survived eviction", id)
		}
	}
}

func TestClear(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Save(sampleTranscript("x")); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	metas, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 0 {
		t.Errorf("meta count = %d after Clear", len(metas))
	}
}

// =============================================================================
// EXPORT TESTS
// =============================================================================

func TestExportMarkdown(t *testing.T) {
	tr := sampleTranscript("question one")
	out := ExportMarkdown(tr)

	if !strings.HasPrefix(out, "# ") {
		t.Error("export should start with a title heading")
	}
	if !strings.Contains(out, "**User**") || !strings.Contains(out, "**Assistant**") {
		t.Errorf("role labels missing:\n%s", out)
	}
	if !strings.Contains(out, "question one") || !strings.Contains(out, "the answer") {
		t.Errorf("content missing:\n%s", out)
	}
}
