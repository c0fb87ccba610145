// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/notechat/internal/asset"
)

// ErrEditingStream indicates an attempt to edit an entry while a response
// is still streaming into it.
var ErrEditingStream = errors.New("cannot edit a streaming response")

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// =============================================================================
// ENTRY TYPE
// =============================================================================

// Entry represents one conversational turn. An entry holds its committed
// swipes (alternate completed responses, insertion order = generation
// order), an optional in-progress pending swipe, and the per-entry view
// state the host renders from.
type Entry struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Response variants
	Swipes        []*Swipe `json:"swipes"`
	SelectedIndex int      `json:"selected_index"`

	// In-progress response (not persisted)
	Pending *Swipe `json:"-"`

	// View state
	Editing          bool `json:"-"`
	ReasoningVisible bool `json:"-"`
	ResponseStarted  bool `json:"-"`

	// Edit snapshot for revert (not persisted)
	editSnapshot *Swipe
}

// NewEntry creates an entry with one committed swipe.
func NewEntry(role Role, content string, images []*asset.Image) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Role:      role,
		CreatedAt: time.Now(),
		Swipes:    []*Swipe{NewSwipe(content, images)},
	}
}

// NewAssistantEntry creates an empty assistant entry awaiting a response.
func NewAssistantEntry() *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	}
}

// SelectedSwipe resolves the swipe currently representing this entry:
// the selected committed swipe if the index is valid, else the pending
// swipe if present, else the last committed swipe, else nil.
func (e *Entry) SelectedSwipe() *Swipe {
	if e.SelectedIndex >= 0 && e.SelectedIndex < len(e.Swipes) {
		return e.Swipes[e.SelectedIndex]
	}
	if e.Pending != nil {
		return e.Pending
	}
	if len(e.Swipes) > 0 {
		return e.Swipes[len(e.Swipes)-1]
	}
	return nil
}

// SwipeCount returns the number of committed swipes.
func (e *Entry) SwipeCount() int {
	return len(e.Swipes)
}

// SelectSwipe changes the displayed swipe. Out-of-range indices are
// ignored silently.
func (e *Entry) SelectSwipe(index int) {
	if index >= 0 && index < len(e.Swipes) {
		e.SelectedIndex = index
	}
}

// =============================================================================
// EVENT FOLDING
// =============================================================================

// ensurePending lazily creates the in-progress swipe on the first
// streamed delta.
func (e *Entry) ensurePending() *Swipe {
	if e.Pending == nil {
		e.Pending = NewPendingSwipe()
	}
	return e.Pending
}

// ApplyText folds a text delta into the pending swipe. Text supersedes
// reasoning as the visible focus.
func (e *Entry) ApplyText(delta string) {
	e.ensurePending().AppendText(delta)
	e.ReasoningVisible = false
}

// ApplyReasoning folds a reasoning delta into the pending swipe and
// surfaces the reasoning view.
func (e *Entry) ApplyReasoning(delta string) {
	e.ensurePending().AppendThoughts(delta)
	e.ReasoningVisible = true
}

// ApplyImage folds a streamed image into the pending swipe.
func (e *Entry) ApplyImage(img *asset.Image) {
	e.ensurePending().AppendImage(img)
}

// ApplyStatus records a confirmed connection. Codes other than 200 are a
// no-op on state; the transport's own error event carries the failure.
func (e *Entry) ApplyStatus(code int) {
	if code == 200 {
		e.ResponseStarted = true
	}
}

// =============================================================================
// COMPLETION
// =============================================================================

// CommitPending commits the pending swipe into the committed list and
// selects it. Called on done and, identically, on abort: a partial
// response is kept as a committed swipe, never discarded by cancellation.
func (e *Entry) CommitPending() {
	if e.Pending == nil {
		return
	}
	e.Pending.Commit()
	e.Swipes = append(e.Swipes, e.Pending)
	e.SelectedIndex = len(e.Swipes) - 1
	e.Pending = nil
}

// FinalizeClose applies the close-time cleanup rule and reports whether
// the entry should be removed from the transcript: with zero committed
// swipes the generation failed before any content (discard); otherwise
// the selection snaps to the last committed swipe. Either way an
// uncommitted pending swipe is released here — done and abort commit it
// before close, so a survivor means the stream errored, and leaving it
// would let a later generation create a second pending elsewhere.
func (e *Entry) FinalizeClose() (discard bool) {
	if e.Pending != nil {
		e.Pending.Release()
		e.Pending = nil
	}
	if len(e.Swipes) == 0 {
		return true
	}
	e.SelectedIndex = len(e.Swipes) - 1
	return false
}

// PrepareRegenerate readies the entry for a fresh generation: the
// selection moves one past the end (the about-to-be-created pending
// swipe), view state resets, and any stale pending swipe is released.
func (e *Entry) PrepareRegenerate() {
	if e.Pending != nil {
		e.Pending.Release()
		e.Pending = nil
	}
	e.SelectedIndex = len(e.Swipes)
	e.ReasoningVisible = false
	e.ResponseStarted = false
}

// =============================================================================
// EDIT MODE
// =============================================================================

// BeginEdit enters edit mode, snapshotting the selected swipe (deep copy
// including its image list) so RevertEdit can restore it. Editing a
// streaming response is disallowed.
func (e *Entry) BeginEdit() error {
	if e.Pending != nil {
		return ErrEditingStream
	}
	selected := e.SelectedSwipe()
	if selected == nil {
		return errors.New("no swipe to edit")
	}
	e.editSnapshot = selected.Clone()
	e.Editing = true
	return nil
}

// CommitEdit leaves edit mode, keeping in-place mutations.
func (e *Entry) CommitEdit() {
	e.Editing = false
	e.editSnapshot = nil
}

// RevertEdit restores the snapshot taken by BeginEdit and leaves edit
// mode. A revert without a prior BeginEdit is a no-op.
func (e *Entry) RevertEdit() {
	if e.editSnapshot == nil {
		e.Editing = false
		return
	}
	if selected := e.SelectedSwipe(); selected != nil {
		selected.Content = e.editSnapshot.Content
		selected.Thoughts = e.editSnapshot.Thoughts
		selected.Images = e.editSnapshot.Images
	}
	e.Editing = false
	e.editSnapshot = nil
}

// =============================================================================
// CLEANUP
// =============================================================================

// Release revokes display handles across all swipes of the entry.
func (e *Entry) Release() {
	for _, s := range e.Swipes {
		s.Release()
	}
	if e.Pending != nil {
		e.Pending.Release()
	}
}
