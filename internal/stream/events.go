// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// =============================================================================
// NORMALIZED EVENT VOCABULARY
// =============================================================================

// EventKind identifies one of the provider-agnostic stream events.
type EventKind string

const (
	EventText      EventKind = "text"
	EventReasoning EventKind = "reasoning"
	EventImage     EventKind = "image"
	EventStatus    EventKind = "status"
	EventDone      EventKind = "done"
	EventError     EventKind = "error"
	EventAbort     EventKind = "abort"
	EventClose     EventKind = "close"
)

// Event is a single normalized stream event. Which fields are meaningful
// depends on Kind: Text carries text/reasoning deltas and error messages,
// DataURL carries image payloads, Status carries the HTTP status code.
type Event struct {
	Kind    EventKind
	Text    string
	DataURL string
	Status  int
}

// TextEvent creates a text delta event.
func TextEvent(delta string) Event {
	return Event{Kind: EventText, Text: delta}
}

// ReasoningEvent creates a reasoning delta event.
func ReasoningEvent(delta string) Event {
	return Event{Kind: EventReasoning, Text: delta}
}

// ImageEvent creates an image event carrying a data URL.
func ImageEvent(dataURL string) Event {
	return Event{Kind: EventImage, DataURL: dataURL}
}

// DoneEvent creates a completion event.
func DoneEvent() Event {
	return Event{Kind: EventDone}
}

// =============================================================================
// SINK
// =============================================================================

// Sink receives normalized events from a transport run.
//
// Ordering guarantees: OnStatus is called at most once, before any
// OnText/OnReasoning/OnImage; exactly one of OnDone/OnError/OnAbort is
// called; OnClose is always called last, exactly once.
type Sink interface {
	OnText(delta string)
	OnReasoning(delta string)
	OnImage(dataURL string)
	OnStatus(code int)
	OnDone()
	OnError(message string)
	OnAbort()
	OnClose()
}

// =============================================================================
// NORMALIZER
// =============================================================================

// RawEvent is one parsed wire frame: the SSE event type (empty for plain
// data frames, "cohere" for reframed line-delimited JSON) and its data.
type RawEvent struct {
	Type string
	Data []byte
}

// Normalizer translates provider wire frames into normalized events.
// Implementations must tolerate malformed frames by returning nil rather
// than failing; a best-effort parse keeps the stream alive.
type Normalizer interface {
	NormalizeEvent(raw RawEvent) []Event
}

// Framing selects the wire format of a provider's streaming response body.
type Framing int

const (
	// FramingSSE is native Server-Sent Events.
	FramingSSE Framing = iota

	// FramingLines is newline-delimited JSON, reframed into synthetic SSE
	// events tagged "cohere" before parsing.
	FramingLines
)
