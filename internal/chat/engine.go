// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/notechat/internal/asset"
	"github.com/jeranaias/notechat/internal/assemble"
	"github.com/jeranaias/notechat/internal/config"
	"github.com/jeranaias/notechat/internal/provider"
	"github.com/jeranaias/notechat/internal/stream"
	"github.com/jeranaias/notechat/internal/transcript"
	"github.com/jeranaias/notechat/internal/vault"
)

// ErrBusy indicates a response is already streaming into the transcript.
var ErrBusy = errors.New("a response is already streaming")

// ErrNotAssistant indicates a regenerate target that is not an assistant
// entry.
var ErrNotAssistant = errors.New("only assistant entries can be regenerated")

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns the request lifecycle for one transcript.
type Engine struct {
	mu       sync.Mutex
	tr       *transcript.Transcript
	settings config.ChatSettings
	vault    vault.Vault

	// RELIABILITY: Rate limiting protects against request storms from
	// misbehaving callers.
	limiter *rate.Limiter

	// observer receives the folded event stream for display, if set.
	observer stream.Sink

	cancel    context.CancelFunc
	lastError string
}

// NewEngine creates an engine over a transcript, resolved settings, and a
// document vault.
func NewEngine(tr *transcript.Transcript, settings config.ChatSettings, v vault.Vault) *Engine {
	return &Engine{
		tr:       tr,
		settings: settings,
		vault:    v,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// WithObserver forwards folded events to a display sink.
func (e *Engine) WithObserver(s stream.Sink) *Engine {
	e.observer = s
	return e
}

// WithLimiter overrides the request rate limiter.
func (e *Engine) WithLimiter(l *rate.Limiter) *Engine {
	e.limiter = l
	return e
}

// Transcript returns the engine's transcript.
func (e *Engine) Transcript() *transcript.Transcript {
	return e.tr
}

// Settings returns the resolved settings in use.
func (e *Engine) Settings() config.ChatSettings {
	return e.settings
}

// Working reports whether a response is currently streaming.
func (e *Engine) Working() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tr.Working
}

// LastError returns the most recent stream error message, or "".
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// Send appends the user's input, appends an assistant entry, and streams a
// response into it. Blocks until the stream closes. Returns ErrBusy when a
// response is already in flight.
func (e *Engine) Send(ctx context.Context, text string, images []*asset.Image) error {
	e.mu.Lock()
	if e.tr.Working {
		e.mu.Unlock()
		return ErrBusy
	}
	e.tr.AppendUserEntry(text, images)
	entry := e.tr.AppendAssistantEntry()
	e.tr.Working = true
	e.lastError = ""
	e.mu.Unlock()

	return e.run(ctx, entry)
}

// Regenerate requests a fresh response variant for an assistant entry.
// The previous responses stay as committed swipes.
func (e *Engine) Regenerate(ctx context.Context, entry *transcript.Entry) error {
	e.mu.Lock()
	if e.tr.Working {
		e.mu.Unlock()
		return ErrBusy
	}
	if entry.Role != transcript.RoleAssistant {
		e.mu.Unlock()
		return ErrNotAssistant
	}
	entry.PrepareRegenerate()
	e.tr.Working = true
	e.lastError = ""
	e.mu.Unlock()

	return e.run(ctx, entry)
}

// Abort cancels the in-flight request. A no-op when nothing is active.
// Cancellation is not synchronous: the working flag is released by the
// stream's close event, not by this call.
func (e *Engine) Abort() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// run builds and executes the provider request for an entry.
func (e *Engine) run(ctx context.Context, entry *transcript.Entry) error {
	if err := e.limiter.Wait(ctx); err != nil {
		e.release(entry)
		return err
	}

	adapter := provider.Resolve(e.settings.Endpoint)

	e.mu.Lock()
	idx := e.tr.IndexOf(entry)
	if idx < 0 {
		idx = len(e.tr.Entries)
	}
	res := assemble.Assemble(e.tr.Entries[:idx], e.tr.Documents, e.vault, e.settings.SupportsImages)
	e.mu.Unlock()

	body, err := adapter.BuildBody(res.Messages, e.settings.Params)
	if err != nil {
		e.release(entry)
		return err
	}

	req := stream.Request{
		URL:     adapter.Endpoint(provider.EndpointChat),
		Body:    body,
		Header:  adapter.Headers(e.settings.APIKey),
		Framing: adapter.Framing(),
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	sink := &entrySink{engine: e, entry: entry}
	stream.NewTransport().Run(runCtx, req, adapter, sink)
	return nil
}

// release backs out of an aborted dispatch before any stream events fired.
func (e *Engine) release(entry *transcript.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry.FinalizeClose() {
		e.removeLocked(entry)
	}
	e.tr.Working = false
}

// removeLocked removes an entry; callers hold e.mu.
func (e *Engine) removeLocked(entry *transcript.Entry) {
	for i, candidate := range e.tr.Entries {
		if candidate == entry {
			entry.Release()
			e.tr.Entries = append(e.tr.Entries[:i], e.tr.Entries[i+1:]...)
			return
		}
	}
}

// =============================================================================
// CONTEXT SIZE
// =============================================================================

// ApproxTokens estimates the token count of the full assembled context.
func (e *Engine) ApproxTokens() int {
	e.mu.Lock()
	res := assemble.Assemble(e.tr.Entries, e.tr.Documents, e.vault, e.settings.SupportsImages)
	e.mu.Unlock()
	return assemble.ApproxTokenCount(res.Messages)
}

// =============================================================================
// ACTIVE-FILE TRACKING
// =============================================================================

// FollowActiveFile keeps the transcript's auto-attached document pointed
// at whichever note changed most recently. Returns a stop function.
func (e *Engine) FollowActiveFile(changes <-chan string) (stop func()) {
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case path, ok := <-changes:
				if !ok {
					return
				}
				e.mu.Lock()
				e.tr.SetAutoDocument(path)
				e.mu.Unlock()
			}
		}
	}()

	return func() { close(done) }
}
