// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package asset converts binary image data to and from transportable
// representations.
//
// An Image owns its bytes plus a MIME type and a transient display handle.
// The codec is bidirectional and lossless: encoding an image to a base64
// data URL and decoding it back reproduces the original bytes and MIME
// type exactly. MIME types are either supplied by the caller or inferred
// from a file-extension table, falling back to application/octet-stream
// for unknown extensions.
//
// The package is pure: no network access, no global configuration.
package asset
