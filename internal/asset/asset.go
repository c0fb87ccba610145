// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package asset

import (
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// IMAGE TYPE
// =============================================================================

// Image holds binary image data plus its MIME type.
//
// An Image is created from paste, file drop, a file-system read, a data-URL
// decode, or streamed provider output. Its lifetime is tied to the swipe
// that references it; call ReleaseHandle when the owning swipe is discarded
// so the display handle is not leaked.
type Image struct {
	// Identity
	ID string `json:"id"`

	// Content
	Data []byte `json:"data"`
	MIME string `json:"mime"`

	// Transient display handle (not persisted)
	handle string
}

// NewImage creates an image from raw bytes and a MIME type.
// An empty mime falls back to application/octet-stream.
func NewImage(data []byte, mime string) *Image {
	if mime == "" {
		mime = FallbackMIME
	}
	return &Image{
		ID:   uuid.NewString(),
		Data: data,
		MIME: mime,
	}
}

// Clone creates a deep copy of the image, including its bytes.
// The clone does not share the original's display handle.
func (i *Image) Clone() *Image {
	data := make([]byte, len(i.Data))
	copy(data, i.Data)
	return &Image{
		ID:   i.ID,
		Data: data,
		MIME: i.MIME,
	}
}

// =============================================================================
// DISPLAY HANDLES
// =============================================================================

// handleRegistry maps display handles to live images so a rendering
// collaborator can resolve them without holding image bytes itself.
type handleRegistry struct {
	mu      sync.Mutex
	handles map[string]*Image
}

var registry = &handleRegistry{
	handles: make(map[string]*Image),
}

// Handle returns the image's display handle, registering one on first use.
// Handles use the asset: scheme followed by the image ID.
func (i *Image) Handle() string {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if i.handle == "" {
		i.handle = "asset:" + i.ID
		registry.handles[i.handle] = i
	}
	return i.handle
}

// ReleaseHandle revokes the image's display handle if one was issued.
// Releasing an image with no handle is a no-op.
func (i *Image) ReleaseHandle() {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if i.handle != "" {
		delete(registry.handles, i.handle)
		i.handle = ""
	}
}

// Resolve returns the image registered under a display handle, or nil.
func Resolve(handle string) *Image {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.handles[handle]
}

// HandleCount returns the number of live display handles.
// Used by tests to verify handles are not leaked.
func HandleCount() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.handles)
}
