// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log"

	"github.com/jeranaias/notechat/internal/asset"
	"github.com/jeranaias/notechat/internal/transcript"
)

// =============================================================================
// EVENT FOLDING SINK
// =============================================================================

// entrySink folds one stream run into its target entry. The transport
// guarantees at most one status before any content, exactly one of
// done/error/abort, and exactly one trailing close.
type entrySink struct {
	engine *Engine
	entry  *transcript.Entry
}

func (s *entrySink) OnText(delta string) {
	s.engine.mu.Lock()
	s.entry.ApplyText(delta)
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnText(delta)
	}
}

func (s *entrySink) OnReasoning(delta string) {
	s.engine.mu.Lock()
	s.entry.ApplyReasoning(delta)
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnReasoning(delta)
	}
}

func (s *entrySink) OnImage(dataURL string) {
	img, err := asset.DecodeDataURL(dataURL)
	if err != nil {
		// A bad image is localized; the rest of the stream continues
		log.Printf("chat: dropping undecodable streamed image: %v", err)
		return
	}

	s.engine.mu.Lock()
	s.entry.ApplyImage(img)
	saveDir := s.engine.settings.ImageSaveDir
	s.engine.mu.Unlock()

	if saveDir != "" {
		if _, err := asset.WriteToDir(img, saveDir); err != nil {
			// Autosave failure is logged, never fatal
			log.Printf("chat: image autosave failed: %v", err)
		}
	}

	if obs := s.engine.observer; obs != nil {
		obs.OnImage(dataURL)
	}
}

func (s *entrySink) OnStatus(code int) {
	s.engine.mu.Lock()
	s.entry.ApplyStatus(code)
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnStatus(code)
	}
}

func (s *entrySink) OnDone() {
	s.engine.mu.Lock()
	s.entry.CommitPending()
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnDone()
	}
}

// OnError records the message and leaves committed transcript state
// untouched, so the user can retry without losing context. The
// uncommitted pending swipe is released by the close event that follows.
func (s *entrySink) OnError(message string) {
	s.engine.mu.Lock()
	s.engine.lastError = message
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnError(message)
	}
}

// OnAbort commits the partial response. Cancellation must not lose
// partial output.
func (s *entrySink) OnAbort() {
	s.engine.mu.Lock()
	s.entry.CommitPending()
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnAbort()
	}
}

func (s *entrySink) OnClose() {
	s.engine.mu.Lock()
	if s.entry.FinalizeClose() {
		s.engine.removeLocked(s.entry)
	}
	s.engine.tr.Working = false
	s.engine.cancel = nil
	s.engine.mu.Unlock()

	if obs := s.engine.observer; obs != nil {
		obs.OnClose()
	}
}
