// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReaderBasicEvents(t *testing.T) {
	input := "data: first\n\ndata: second\n\n"
	r := NewSSEReader(strings.NewReader(input))

	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if ev.Type != "" || string(ev.Data) != "first" {
		t.Errorf("event = %+v", ev)
	}

	ev, err = r.ReadEvent()
	if err != nil || string(ev.Data) != "second" {
		t.Errorf("event = %+v, err = %v", ev, err)
	}

	if _, err := r.ReadEvent(); err != io.EOF {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestSSEReaderEventType(t *testing.T) {
	input := "event: message_stop\ndata: {}\n\n"
	r := NewSSEReader(strings.NewReader(input))

	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if ev.Type != "message_stop" {
		t.Errorf("Type = %q", ev.Type)
	}
}

func TestSSEReaderMultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	r := NewSSEReader(strings.NewReader(input))

	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(ev.Data) != "line one\nline two" {
		t.Errorf("Data = %q, want joined lines", ev.Data)
	}
}

func TestSSEReaderDataBeforeEOF(t *testing.T) {
	// No trailing blank line: the pending data still comes through
	r := NewSSEReader(strings.NewReader("data: trailing"))

	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(ev.Data) != "trailing" {
		t.Errorf("Data = %q", ev.Data)
	}

	if _, err := r.ReadEvent(); err != io.EOF {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestSSEReaderIgnoresCommentsAndCRLF(t *testing.T) {
	input := ": keepalive\r\nid: 7\r\ndata: payload\r\n\r\n"
	r := NewSSEReader(strings.NewReader(input))

	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(ev.Data) != "payload" {
		t.Errorf("Data = %q", ev.Data)
	}
}

func TestSSEReaderChunkTooLarge(t *testing.T) {
	huge := "data: " + strings.Repeat("x", MaxChunkSize+1) + "\n\n"
	r := NewSSEReader(strings.NewReader(huge))

	if _, err := r.ReadEvent(); !errors.Is(err, errChunkTooLarge) {
		t.Errorf("err = %v, want chunk-too-large", err)
	}
}

// =============================================================================
// LINE REFRAMER TESTS
// =============================================================================

// dribbleReader returns the source one byte per Read call, the worst case
// for partial-line reassembly.
type dribbleReader struct {
	data []byte
	pos  int
}

func (d *dribbleReader) Read(p []byte) (int, error) {
	if d.pos >= len(d.data) {
		return 0, io.EOF
	}
	p[0] = d.data[d.pos]
	d.pos++
	return 1, nil
}

func TestLineReframerFraming(t *testing.T) {
	src := strings.NewReader("{\"a\":1}\n{\"b\":2}\n")
	out, err := io.ReadAll(NewLineReframer(src))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	want := "event: cohere\ndata: {\"a\":1}\n\nevent: cohere\ndata: {\"b\":2}\n\n"
	if string(out) != want {
		t.Errorf("framed = %q, want %q", out, want)
	}
}

func TestLineReframerPartialLineCarryOver(t *testing.T) {
	// One byte per read: every line arrives split across many reads
	src := &dribbleReader{data: []byte("{\"event_type\":\"text-generation\",\"text\":\"hi\"}\n")}
	r := NewSSEReader(NewLineReframer(src))

	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if ev.Type != "cohere" {
		t.Errorf("Type = %q, want cohere", ev.Type)
	}
	if string(ev.Data) != `{"event_type":"text-generation","text":"hi"}` {
		t.Errorf("Data = %q", ev.Data)
	}
}

func TestLineReframerFinalUnterminatedLine(t *testing.T) {
	src := strings.NewReader(`{"last":true}`)
	out, err := io.ReadAll(NewLineReframer(src))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(out) != "event: cohere\ndata: {\"last\":true}\n\n" {
		t.Errorf("framed = %q", out)
	}
}

func TestLineReframerSkipsBlankLines(t *testing.T) {
	src := strings.NewReader("\n\r\n{\"a\":1}\n\n")
	out, err := io.ReadAll(NewLineReframer(src))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if got := strings.Count(string(out), "event: cohere"); got != 1 {
		t.Errorf("frame count = %d, want 1:\n%q", got, out)
	}
}
