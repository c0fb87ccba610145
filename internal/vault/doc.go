// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault provides read access to the host's note collection and a
// file watcher that reports active-file changes. Document paths are always
// relative to the vault root; absolute paths and parent traversal are
// rejected.
package vault
