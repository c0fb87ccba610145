// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"github.com/google/uuid"
)

// =============================================================================
// DOCUMENT TYPE
// =============================================================================

// Document references a host-managed note or file usable as model context.
// Pinned documents are excluded from automatic replacement when the active
// file changes; muted documents stay listed but are excluded from context
// assembly.
type Document struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Pinned bool   `json:"pinned"`
	Muted  bool   `json:"muted"`
}

// NewDocument creates a document reference for a path.
func NewDocument(path string) *Document {
	return &Document{
		ID:   uuid.NewString(),
		Path: path,
	}
}
