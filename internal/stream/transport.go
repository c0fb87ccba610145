// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Configuration constants for the streaming transport.
const (
	// DefaultConnectTimeout bounds the wait for a response head. Once a
	// 200 arrives the timer is disarmed; an arbitrarily long stream is
	// supported after that.
	DefaultConnectTimeout = 15 * time.Second

	// MaxErrorBodySize is the maximum error response body read for
	// message extraction.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxErrorBodySize = 1 * 1024 * 1024
)

var errChunkTooLarge = errors.New("sse chunk too large")

// sharedStreamingClient is used for streaming requests (no timeout,
// context-controlled).
// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	// No timeout for streaming - controlled via context
}

// =============================================================================
// TRANSPORT STATE
// =============================================================================

// State is the lifecycle state of a transport run.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateDone       State = "done"
	StateAborted    State = "aborted"
	StateErrored    State = "errored"
	StateClosed     State = "closed"
)

// Request is a fully built provider request: endpoint URL, JSON body,
// provider headers, and the wire framing of the streaming response.
type Request struct {
	URL     string
	Body    []byte
	Header  http.Header
	Framing Framing
}

// Transport executes one streaming request and drives a Sink through the
// normalized event vocabulary. A Transport value is single-use; create a
// new one per request.
type Transport struct {
	client         *http.Client
	connectTimeout time.Duration

	mu       sync.Mutex
	state    State
	terminal bool
	closed   bool
}

// NewTransport creates a transport with default settings.
func NewTransport() *Transport {
	return &Transport{
		client:         sharedStreamingClient,
		connectTimeout: DefaultConnectTimeout,
		state:          StateIdle,
	}
}

// WithConnectTimeout sets the connect/first-byte inactivity timeout.
func (t *Transport) WithConnectTimeout(d time.Duration) *Transport {
	t.connectTimeout = d
	return t
}

// WithClient sets a custom HTTP client (used by tests).
func (t *Transport) WithClient(c *http.Client) *Transport {
	t.client = c
	return t
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the request and blocks until the stream terminates.
//
// Every path emits exactly one of OnDone/OnError/OnAbort followed by
// exactly one OnClose. Caller cancellation of ctx surfaces as abort;
// everything else that prevents a clean end-of-body surfaces as error.
func (t *Transport) Run(ctx context.Context, req Request, n Normalizer, sink Sink) {
	t.setState(StateConnecting)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Inactivity timer: armed until the response head arrives.
	var timedOut atomic.Bool
	timer := time.AfterFunc(t.connectTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	httpReq, err := http.NewRequestWithContext(runCtx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		t.finishError(sink, "invalid request: "+err.Error())
		return
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.ContentLength = int64(len(req.Body))

	resp, err := t.client.Do(httpReq)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			t.finishAbort(sink)
		case timedOut.Load():
			t.finishError(sink, "connection timed out")
		default:
			t.finishError(sink, "request failed: "+err.Error())
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		t.finishError(sink, FormatHTTPError(resp.StatusCode, body))
		return
	}

	// Connected: disarm the inactivity timer. A long-lived stream must not
	// be killed by inactivity once confirmed live.
	timer.Stop()
	t.setState(StateStreaming)
	sink.OnStatus(http.StatusOK)

	var body io.Reader = resp.Body
	if req.Framing == FramingLines {
		body = NewLineReframer(resp.Body)
	}
	reader := NewSSEReader(body)

	for {
		raw, err := reader.ReadEvent()
		if err != nil {
			switch {
			case err == io.EOF:
				// Clean end-of-body counts as completion.
				t.finishDone(sink)
			case ctx.Err() != nil:
				t.finishAbort(sink)
			default:
				t.finishError(sink, "stream read failed: "+err.Error())
			}
			return
		}

		if bytes.Equal(raw.Data, []byte("[DONE]")) {
			t.finishDone(sink)
			return
		}

		for _, ev := range n.NormalizeEvent(raw) {
			switch ev.Kind {
			case EventText:
				sink.OnText(ev.Text)
			case EventReasoning:
				sink.OnReasoning(ev.Text)
			case EventImage:
				sink.OnImage(ev.DataURL)
			case EventDone:
				t.finishDone(sink)
				return
			}
		}

		select {
		case <-ctx.Done():
			t.finishAbort(sink)
			return
		default:
		}
	}
}

// =============================================================================
// TERMINAL EMISSION
// =============================================================================

// emitTerminal transitions into a terminal state and runs emit exactly once.
func (t *Transport) emitTerminal(s State, emit func()) {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return
	}
	t.terminal = true
	t.state = s
	t.mu.Unlock()
	emit()
}

// emitClose emits OnClose exactly once (idempotent close guard).
func (t *Transport) emitClose(sink Sink) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.state = StateClosed
	t.mu.Unlock()
	sink.OnClose()
}

func (t *Transport) finishDone(sink Sink) {
	t.emitTerminal(StateDone, sink.OnDone)
	t.emitClose(sink)
}

func (t *Transport) finishAbort(sink Sink) {
	t.emitTerminal(StateAborted, sink.OnAbort)
	t.emitClose(sink)
}

func (t *Transport) finishError(sink Sink, message string) {
	t.emitTerminal(StateErrored, func() { sink.OnError(message) })
	t.emitClose(sink)
}
