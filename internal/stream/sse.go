// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"io"
)

// MaxChunkSize is the maximum allowed size for a single SSE event (64KB).
const MaxChunkSize = 64 * 1024

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type (empty for untyped frames) and the joined data.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (RawEvent, error) {
	var eventType string
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// If we have data, return it before EOF
				if len(dataLines) > 0 {
					return RawEvent{Type: eventType, Data: bytes.Join(dataLines, []byte("\n"))}, nil
				}
				return RawEvent{}, io.EOF
			}
			return RawEvent{}, err
		}

		// Trim trailing newline and carriage return
		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return RawEvent{Type: eventType, Data: bytes.Join(dataLines, []byte("\n"))}, nil
			}
			continue
		}

		size += len(line)
		if size > MaxChunkSize {
			return RawEvent{}, errChunkTooLarge
		}

		// Parse field
		if rest, ok := bytes.CutPrefix(line, []byte("event:")); ok {
			eventType = string(bytes.TrimSpace(rest))
		} else if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			dataLines = append(dataLines, bytes.TrimSpace(rest))
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// LINE REFRAMER
// =============================================================================

// LineReframer converts a newline-delimited JSON body into synthetic SSE
// frames ("event: cohere\ndata: <line>\n\n") so the same SSEReader can
// consume both wire formats.
//
// Partial lines are carried over across reads: input is accumulated in a
// remainder buffer and only complete lines are flushed, so a JSON object
// split across physical chunks is reassembled before framing.
type LineReframer struct {
	src       io.Reader
	remainder []byte // Bytes after the last complete line
	framed    []byte // Framed output not yet consumed by Read
	eof       bool
}

// NewLineReframer wraps a line-delimited JSON reader.
func NewLineReframer(src io.Reader) *LineReframer {
	return &LineReframer{src: src}
}

// Read implements io.Reader, emitting synthetic SSE frames.
func (l *LineReframer) Read(p []byte) (int, error) {
	for len(l.framed) == 0 {
		if l.eof {
			return 0, io.EOF
		}

		buf := make([]byte, 4096)
		n, err := l.src.Read(buf)
		if n > 0 {
			l.remainder = append(l.remainder, buf[:n]...)
			l.flushCompleteLines()
		}
		if err != nil {
			l.eof = true
			if err == io.EOF {
				// A final unterminated line is still a complete payload
				// once the body ends.
				l.flushFinal()
				continue
			}
			return 0, err
		}
	}

	n := copy(p, l.framed)
	l.framed = l.framed[n:]
	return n, nil
}

// flushCompleteLines frames every complete line in the remainder buffer,
// keeping any trailing partial line for the next read.
func (l *LineReframer) flushCompleteLines() {
	for {
		idx := bytes.IndexByte(l.remainder, '\n')
		if idx < 0 {
			return
		}
		line := bytes.TrimRight(l.remainder[:idx], "\r")
		l.remainder = l.remainder[idx+1:]
		l.frame(line)
	}
}

// flushFinal frames the remainder after EOF.
func (l *LineReframer) flushFinal() {
	line := bytes.TrimRight(l.remainder, "\r\n")
	l.remainder = nil
	l.frame(line)
}

// frame appends one synthetic SSE frame for a payload line.
func (l *LineReframer) frame(line []byte) {
	if len(line) == 0 {
		return
	}
	l.framed = append(l.framed, "event: cohere\ndata: "...)
	l.framed = append(l.framed, line...)
	l.framed = append(l.framed, "\n\n"...)
}
