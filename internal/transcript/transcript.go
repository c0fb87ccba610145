// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/notechat/internal/asset"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript holds the ordered entry sequence and the attached document
// list for one conversation. At most one entry has a live in-progress
// response at any time; the Working flag is the caller-enforced
// single-flight lock around that invariant.
type Transcript struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Content
	Entries   []*Entry    `json:"entries"`
	Documents []*Document `json:"documents"`

	// Request lifecycle (not persisted)
	Working bool `json:"-"`
}

// New creates an empty transcript with a generated ID.
func New() *Transcript {
	now := time.Now()
	return &Transcript{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// ENTRY MANAGEMENT
// =============================================================================

// AppendUserEntry appends a user turn. If the last entry is a user entry
// that has not yet received a response, the new input merges into it so
// consecutive user turns stay coalesced.
func (t *Transcript) AppendUserEntry(text string, images []*asset.Image) *Entry {
	t.UpdatedAt = time.Now()

	if last := t.LastEntry(); last != nil && last.Role == RoleUser {
		swipe := last.SelectedSwipe()
		if swipe != nil {
			if swipe.Content != "" && text != "" {
				swipe.Content += "\n" + text
			} else {
				swipe.Content += text
			}
			swipe.Images = append(swipe.Images, images...)
			return last
		}
	}

	entry := NewEntry(RoleUser, text, images)
	t.Entries = append(t.Entries, entry)
	t.updateTitle()
	return entry
}

// AppendAssistantEntry appends an empty assistant entry awaiting its
// first generation.
func (t *Transcript) AppendAssistantEntry() *Entry {
	entry := NewAssistantEntry()
	t.Entries = append(t.Entries, entry)
	t.UpdatedAt = time.Now()
	return entry
}

// LastEntry returns the most recent entry, or nil if empty.
func (t *Transcript) LastEntry() *Entry {
	if len(t.Entries) == 0 {
		return nil
	}
	return t.Entries[len(t.Entries)-1]
}

// EntryByID returns the entry with the given ID, or nil.
func (t *Transcript) EntryByID(id string) *Entry {
	for _, e := range t.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// IndexOf returns the position of an entry, or -1 when it is not present.
func (t *Transcript) IndexOf(entry *Entry) int {
	for i, e := range t.Entries {
		if e == entry {
			return i
		}
	}
	return -1
}

// RemoveEntry removes an entry by identity and releases its image
// handles. Removing an entry that is already gone is a silent no-op.
func (t *Transcript) RemoveEntry(entry *Entry) bool {
	idx := t.IndexOf(entry)
	if idx < 0 {
		return false
	}
	entry.Release()
	t.Entries = append(t.Entries[:idx], t.Entries[idx+1:]...)
	t.UpdatedAt = time.Now()
	return true
}

// DeleteBelow removes every entry at or after index.
func (t *Transcript) DeleteBelow(index int) {
	if index < 0 || index >= len(t.Entries) {
		return
	}
	for _, e := range t.Entries[index:] {
		e.Release()
	}
	t.Entries = t.Entries[:index]
	t.UpdatedAt = time.Now()
}

// PendingEntry returns the entry currently holding an in-progress swipe,
// or nil. At most one such entry exists.
func (t *Transcript) PendingEntry() *Entry {
	for _, e := range t.Entries {
		if e.Pending != nil {
			return e
		}
	}
	return nil
}

// =============================================================================
// DOCUMENT MANAGEMENT
// =============================================================================

// AttachDocument attaches a document reference. Attaching a path that is
// already attached returns the existing document.
func (t *Transcript) AttachDocument(path string) *Document {
	for _, d := range t.Documents {
		if d.Path == path {
			return d
		}
	}
	doc := NewDocument(path)
	t.Documents = append(t.Documents, doc)
	t.UpdatedAt = time.Now()
	return doc
}

// SetAutoDocument points the auto-attached document at a new path. The
// first non-pinned document follows the host's active file; pinned
// documents persist until explicitly unpinned or removed.
func (t *Transcript) SetAutoDocument(path string) *Document {
	for _, d := range t.Documents {
		if d.Path == path {
			return d
		}
	}
	for _, d := range t.Documents {
		if !d.Pinned {
			d.Path = path
			t.UpdatedAt = time.Now()
			return d
		}
	}
	return t.AttachDocument(path)
}

// RemoveDocument removes a document by ID. Silent no-op when absent.
func (t *Transcript) RemoveDocument(id string) bool {
	for i, d := range t.Documents {
		if d.ID == id {
			t.Documents = append(t.Documents[:i], t.Documents[i+1:]...)
			t.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-generates a title from the first user entry if unset.
func (t *Transcript) updateTitle() {
	if t.Title != "" {
		return
	}
	for _, e := range t.Entries {
		if e.Role == RoleUser {
			if s := e.SelectedSwipe(); s != nil && s.Content != "" {
				runes := []rune(s.Content)
				if len(runes) > 50 {
					t.Title = string(runes[:47]) + "..."
				} else {
					t.Title = s.Content
				}
				return
			}
		}
	}
}
