// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/notechat/internal/transcript"
	"github.com/jeranaias/notechat/internal/util"
)

// =============================================================================
// TRANSCRIPT METADATA
// =============================================================================

// TranscriptMeta contains metadata for listing transcripts.
type TranscriptMeta struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	EntryCount int       `json:"entry_count"`
	Preview    string    `json:"preview"` // First user entry truncated
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore handles transcript persistence.
type TranscriptStore struct {
	// BaseDir is the directory for storing transcripts
	// Default: ~/.notechat/transcripts/
	BaseDir string

	// MaxTranscripts limits stored transcripts (0 = unlimited)
	MaxTranscripts int
}

// NewTranscriptStore creates a new transcript store.
func NewTranscriptStore() (*TranscriptStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(homeDir, ".notechat", "transcripts")

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &TranscriptStore{
		BaseDir:        baseDir,
		MaxTranscripts: 100,
	}, nil
}

// NewTranscriptStoreWithDir creates a store with a custom directory.
func NewTranscriptStoreWithDir(baseDir string) (*TranscriptStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &TranscriptStore{
		BaseDir:        baseDir,
		MaxTranscripts: 100,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a transcript and returns its ID. In-progress pending
// responses are not persisted; a transcript saved mid-stream reloads with
// only its committed swipes.
func (s *TranscriptStore) Save(t *transcript.Transcript) (string, error) {
	t.UpdatedAt = time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	filePath := s.filePath(t.ID)
	if err := util.AtomicWriteFile(filePath, data, 0644); err != nil {
		return "", err
	}

	if s.MaxTranscripts > 0 {
		s.enforceLimit()
	}

	return t.ID, nil
}

// enforceLimit removes oldest transcripts if over limit.
func (s *TranscriptStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}

	// Sort by updated time (oldest first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})

	excess := len(metas) - s.MaxTranscripts
	for i := 0; i < excess; i++ {
		s.Delete(metas[i].ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a transcript by ID.
func (s *TranscriptStore) Load(id string) (*transcript.Transcript, error) {
	filePath := s.filePath(id)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}

	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// LoadByIndex loads a transcript by its index in the list (0 = most recent).
func (s *TranscriptStore) LoadByIndex(index int) (*transcript.Transcript, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(metas) {
		return nil, ErrTranscriptNotFound
	}

	return s.Load(metas[index].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved transcripts (most recent first).
func (s *TranscriptStore) List() ([]TranscriptMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptMeta{}, nil
		}
		return nil, err
	}

	var metas []TranscriptMeta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		t, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}

		metas = append(metas, TranscriptMeta{
			ID:         t.ID,
			Title:      t.Title,
			CreatedAt:  t.CreatedAt,
			UpdatedAt:  t.UpdatedAt,
			EntryCount: len(t.Entries),
			Preview:    preview(t),
		})
	}

	// Sort by updated time (most recent first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// Search finds transcripts whose title, preview, or entry content matches
// a query string (case-insensitive).
func (s *TranscriptStore) Search(query string) ([]TranscriptMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	query = strings.ToLower(query)
	var results []TranscriptMeta

	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
			continue
		}

		t, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, e := range t.Entries {
			swipe := e.SelectedSwipe()
			if swipe != nil && strings.Contains(strings.ToLower(swipe.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}

	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a transcript by ID.
func (s *TranscriptStore) Delete(id string) error {
	filePath := s.filePath(id)

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return ErrTranscriptNotFound
		}
		return err
	}

	return nil
}

// Clear removes all saved transcripts.
func (s *TranscriptStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			filePath := filepath.Join(s.BaseDir, entry.Name())
			os.Remove(filePath)
		}
	}

	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a transcript as a Markdown document: title,
// timestamps, and each entry's selected swipe with a role label.
func ExportMarkdown(t *transcript.Transcript) string {
	var sb strings.Builder
	title := t.Title
	if title == "" {
		title = t.ID
	}
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("Created: " + t.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, e := range t.Entries {
		swipe := e.SelectedSwipe()
		if swipe == nil {
			continue
		}
		role := "**User**"
		if e.Role == transcript.RoleAssistant {
			role = "**Assistant**"
		}
		sb.WriteString(role + " (" + e.CreatedAt.Format("15:04") + "):\n\n")
		sb.WriteString(swipe.DisplayContent())
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a transcript ID.
func (s *TranscriptStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// preview returns the first user entry's content, truncated.
func preview(t *transcript.Transcript) string {
	for _, e := range t.Entries {
		if e.Role != transcript.RoleUser {
			continue
		}
		swipe := e.SelectedSwipe()
		if swipe == nil || swipe.Content == "" {
			continue
		}
		return util.TruncateRunes(strings.ReplaceAll(swipe.Content, "\n", " "), 80)
	}
	return ""
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrTranscriptNotFound is returned when a transcript doesn't exist.
// Use errors.Is(err, ErrTranscriptNotFound) to check for this error.
var ErrTranscriptNotFound = &TranscriptError{Message: "transcript not found"}

// TranscriptError represents a transcript storage error.
type TranscriptError struct {
	Message string
}

// Error implements the error interface.
func (e *TranscriptError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing transcript errors.
func (e *TranscriptError) Is(target error) bool {
	t, ok := target.(*TranscriptError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
