// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package asset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FallbackMIME is used when a MIME type cannot be inferred.
const FallbackMIME = "application/octet-stream"

// ErrMalformedAsset indicates a data URL that could not be decoded.
var ErrMalformedAsset = errors.New("malformed asset")

// =============================================================================
// MIME INFERENCE
// =============================================================================

// mimeByExtension maps lowercase file extensions to image MIME types.
var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
}

// extensionByMIME is the reverse table, used when writing images to disk.
var extensionByMIME = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/bmp":     ".bmp",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
}

// MIMEForPath infers a MIME type from a file path's extension.
// Unknown extensions fall back to application/octet-stream.
func MIMEForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return FallbackMIME
}

// IsImagePath returns true if the path's extension maps to an image type.
func IsImagePath(path string) bool {
	_, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ExtensionForMIME returns the canonical file extension for a MIME type,
// or ".bin" when the type is unknown.
func ExtensionForMIME(mime string) string {
	if ext, ok := extensionByMIME[mime]; ok {
		return ext
	}
	return ".bin"
}

// =============================================================================
// DATA URL CODEC
// =============================================================================

// EncodeDataURL encodes the image as a base64 data URL.
func EncodeDataURL(img *Image) string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DecodeDataURL decodes a base64 data URL into an image.
// Returns ErrMalformedAsset when the string is not a valid data URL.
func DecodeDataURL(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrMalformedAsset)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrMalformedAsset)
	}

	mime, encoding := meta, ""
	if idx := strings.IndexByte(meta, ';'); idx >= 0 {
		mime = meta[:idx]
		encoding = meta[idx+1:]
	}
	if encoding != "base64" {
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrMalformedAsset, encoding)
	}
	if mime == "" {
		mime = FallbackMIME
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAsset, err)
	}

	return NewImage(data, mime), nil
}

// =============================================================================
// FILE I/O
// =============================================================================

// ReadFile reads an image from disk, inferring the MIME type from the
// file extension. I/O errors are propagated unchanged.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewImage(data, MIMEForPath(path)), nil
}

// WriteToDir persists an image into dir with a timestamped filename and
// an extension derived from the MIME type. Returns the written path.
func WriteToDir(img *Image, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := time.Now().UTC().Format("20060102-150405") + "-" + img.ID[:8] + ExtensionForMIME(img.MIME)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
