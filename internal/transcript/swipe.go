// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/notechat/internal/asset"
)

// =============================================================================
// SWIPE TYPE
// =============================================================================

// Swipe is one complete or in-progress response variant: text content,
// ordered image references, and optional reasoning text. Committed swipes
// are immutable except through explicit edit-and-revert.
type Swipe struct {
	// Identity
	ID string `json:"id"`

	// Content
	Content  string         `json:"content"`
	Images   []*asset.Image `json:"images,omitempty"`
	Thoughts *string        `json:"thoughts,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	streaming      bool
	streamContent  strings.Builder
	streamThoughts strings.Builder
	hasThoughts    bool
}

// NewSwipe creates a committed swipe with the given content.
func NewSwipe(content string, images []*asset.Image) *Swipe {
	return &Swipe{
		ID:      uuid.NewString(),
		Content: content,
		Images:  images,
	}
}

// NewPendingSwipe creates an empty in-progress swipe.
func NewPendingSwipe() *Swipe {
	return &Swipe{
		ID:        uuid.NewString(),
		streaming: true,
	}
}

// IsStreaming reports whether the swipe is still accumulating deltas.
func (s *Swipe) IsStreaming() bool {
	return s.streaming
}

// AppendText appends a streamed text delta.
func (s *Swipe) AppendText(delta string) {
	if s.streaming {
		s.streamContent.WriteString(delta)
	}
}

// AppendThoughts appends a streamed reasoning delta. The thoughts text is
// created empty on the first token so "produced no reasoning" (nil) stays
// distinguishable from "produced empty reasoning".
func (s *Swipe) AppendThoughts(delta string) {
	if s.streaming {
		s.hasThoughts = true
		s.streamThoughts.WriteString(delta)
	}
}

// AppendImage appends a streamed image.
func (s *Swipe) AppendImage(img *asset.Image) {
	s.Images = append(s.Images, img)
}

// Commit freezes the streamed builders into the immutable fields.
func (s *Swipe) Commit() {
	if !s.streaming {
		return
	}
	s.Content = s.streamContent.String()
	s.streamContent.Reset()
	if s.hasThoughts {
		thoughts := s.streamThoughts.String()
		s.Thoughts = &thoughts
		s.streamThoughts.Reset()
	}
	s.streaming = false
}

// DisplayContent returns the content to display (streaming or final).
func (s *Swipe) DisplayContent() string {
	if s.streaming {
		return s.streamContent.String()
	}
	return s.Content
}

// DisplayThoughts returns the reasoning text to display, or "" if none.
func (s *Swipe) DisplayThoughts() string {
	if s.streaming {
		return s.streamThoughts.String()
	}
	if s.Thoughts != nil {
		return *s.Thoughts
	}
	return ""
}

// IsEmpty reports whether the swipe has no content of any kind.
func (s *Swipe) IsEmpty() bool {
	return s.DisplayContent() == "" && len(s.Images) == 0 && !s.hasThoughts && s.Thoughts == nil
}

// Clone creates a deep copy of the swipe, including its image list.
// Used for edit snapshots; streaming state is not carried over.
func (s *Swipe) Clone() *Swipe {
	clone := &Swipe{
		ID:      s.ID,
		Content: s.DisplayContent(),
	}
	if s.Thoughts != nil {
		thoughts := *s.Thoughts
		clone.Thoughts = &thoughts
	}
	for _, img := range s.Images {
		clone.Images = append(clone.Images, img.Clone())
	}
	return clone
}

// Release revokes the display handles of every referenced image.
// Must be called when the swipe is discarded so handles are not leaked.
func (s *Swipe) Release() {
	for _, img := range s.Images {
		img.ReleaseHandle()
	}
}
