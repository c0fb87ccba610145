// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// ACTIVE-FILE WATCHER
// =============================================================================

// DefaultDebounce is how long a note must stay quiet after a write before
// a change is reported. Editors fire several events per save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports which note was most recently written in the vault.
// The chat layer uses this to keep the auto-attached document following
// the file the user is working in.
type Watcher struct {
	vault    *DirVault
	watcher  *fsnotify.Watcher
	debounce time.Duration
	changes  chan string

	mu      sync.Mutex
	pending map[string]time.Time // vault-relative path -> last change time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over the vault's directory tree.
func NewWatcher(v *DirVault, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		vault:    v,
		watcher:  fsw,
		debounce: debounce,
		changes:  make(chan string, 16),
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}

	return w, nil
}

// Changes delivers vault-relative paths of notes that changed.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Watch starts watching for note changes.
func (w *Watcher) Watch() error {
	if err := w.addRecursive(w.vault.Root()); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// addRecursive adds a directory and all its subdirectories to the watch list
func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() {
			return nil
		}

		if strings.HasPrefix(filepath.Base(path), ".") && path != w.vault.Root() {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			// Non-fatal, continue
			return nil
		}

		return nil
	})
}

// processEvents processes file system events
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleFileChange(event.Name)
			}

			// New directories need their own watch entries
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addRecursive(event.Name)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors are non-fatal; keep consuming
		}
	}
}

// handleFileChange records a note change for debounced delivery.
func (w *Watcher) handleFileChange(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return
	}

	rel, err := filepath.Rel(w.vault.Root(), path)
	if err != nil {
		return
	}

	w.mu.Lock()
	w.pending[rel] = time.Now()
	w.mu.Unlock()
}

// processPending delivers pending changes once they settle.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var settled []string
			for path, changeTime := range w.pending {
				if now.Sub(changeTime) >= w.debounce {
					settled = append(settled, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range settled {
				select {
				case w.changes <- path:
				case <-w.ctx.Done():
					return
				default:
					// Drop when the consumer is behind; only the
					// latest active file matters
				}
			}
		}
	}
}

// Close stops watching and releases resources
func (w *Watcher) Close() error {
	w.cancel()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
