// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrNotText indicates a file whose bytes are not valid UTF-8.
var ErrNotText = errors.New("file is not valid UTF-8 text")

// ErrOutsideVault indicates a path that resolves outside the vault root.
var ErrOutsideVault = errors.New("path escapes vault root")

// Vault reads document content referenced by transcripts.
type Vault interface {
	// ReadText reads a document as UTF-8 text. Returns ErrNotText when
	// the bytes do not decode.
	ReadText(path string) (string, error)

	// ReadBinary reads a document's raw bytes.
	ReadBinary(path string) ([]byte, error)
}

// =============================================================================
// DIRECTORY VAULT
// =============================================================================

// DirVault serves documents from a directory tree on disk.
type DirVault struct {
	root string
}

// NewDirVault creates a vault rooted at dir.
func NewDirVault(dir string) *DirVault {
	return &DirVault{root: filepath.Clean(dir)}
}

// Root returns the vault's root directory.
func (v *DirVault) Root() string {
	return v.root
}

// resolve maps a document path to an absolute path under the root.
// SECURITY: rejects absolute paths and any traversal outside the root
func (v *DirVault) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, path)
	}
	full := filepath.Join(v.root, filepath.Clean(path))
	rel, err := filepath.Rel(v.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, path)
	}
	return full, nil
}

// ReadText reads a document as UTF-8 text.
func (v *DirVault) ReadText(path string) (string, error) {
	data, err := v.ReadBinary(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrNotText, path)
	}
	return string(data), nil
}

// ReadBinary reads a document's raw bytes.
func (v *DirVault) ReadBinary(path string) ([]byte, error) {
	full, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// ListNotes returns the vault-relative paths of all markdown notes,
// sorted for stable display.
func (v *DirVault) ListNotes() ([]string, error) {
	var notes []string
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != v.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			rel, relErr := filepath.Rel(v.root, path)
			if relErr != nil {
				return relErr
			}
			notes = append(notes, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(notes)
	return notes, nil
}
