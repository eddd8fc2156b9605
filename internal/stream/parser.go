// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// FRAME PARSER
// =============================================================================

// Sentinel data payloads that terminate or pad an SSE stream without
// carrying a frame.
const (
	sentinelEmpty = "{}"
	sentinelDone  = "[DONE]"
)

// Parser reassembles raw transport chunks into discrete frames.
//
// Both transports feed it: the HTTP proxy wraps frames in SSE framing
// (event:/data: lines), while a directly spawned CLI emits bare
// newline-delimited JSON. Parser handles both, plus a graceful-degradation
// path that wraps non-JSON data payloads in a synthetic assistant frame.
//
// A line split across two chunks is never parsed until the terminating
// newline arrives. A trailing partial line at end of stream is not a valid
// frame and is discarded; there is no implicit flush.
type Parser struct {
	// remainder holds the final, possibly incomplete segment of the
	// previous chunk.
	remainder strings.Builder

	// lastEvent records the most recent SSE event name. Informational
	// only; no frame is emitted for event: lines.
	lastEvent string
}

// NewParser creates a parser with an empty line buffer.
func NewParser() *Parser {
	return &Parser{}
}

// LastEvent returns the most recently seen SSE event name, or "" if the
// stream carried no event: lines.
func (p *Parser) LastEvent() string {
	return p.lastEvent
}

// Feed appends a chunk to the rolling buffer and returns every frame whose
// line was completed by this chunk, in arrival order. Chunk boundaries are
// arbitrary: feeding one chunk or the same bytes split at any points yields
// the identical frame sequence.
func (p *Parser) Feed(chunk string) []Envelope {
	p.remainder.WriteString(chunk)

	text := p.remainder.String()
	lines := strings.Split(text, "\n")

	// The final segment has no terminating newline yet; keep it buffered.
	p.remainder.Reset()
	p.remainder.WriteString(lines[len(lines)-1])
	lines = lines[:len(lines)-1]

	var frames []Envelope
	for _, line := range lines {
		if env, ok := p.parseLine(line); ok {
			frames = append(frames, env)
		}
	}
	return frames
}

// parseLine processes one complete line and reports whether it produced a
// frame. Malformed lines are dropped silently: the CLI's output format is
// not contractually valid JSON line-by-line.
func (p *Parser) parseLine(line string) (Envelope, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Envelope{}, false
	}

	// SSE event name. Recorded, never emitted.
	if name, ok := strings.CutPrefix(line, "event:"); ok {
		p.lastEvent = strings.TrimSpace(name)
		return Envelope{}, false
	}

	// SSE data payload.
	if data, ok := strings.CutPrefix(line, "data:"); ok {
		data = strings.TrimSpace(data)
		if data == "" || data == sentinelEmpty || data == sentinelDone {
			return Envelope{}, false
		}

		var env Envelope
		if err := json.Unmarshal([]byte(data), &env); err == nil {
			return env, true
		}

		// Non-JSON payload: wrap the raw text as assistant content so
		// plain-text CLI output still reaches the transcript.
		return Envelope{
			Type:    FrameAssistant,
			Message: &MessagePayload{Content: BlockList{TextBlock(data)}},
		}, true
	}

	// No SSE prefix: newline-delimited JSON fallback mode.
	var env Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return Envelope{}, false
	}
	return env, true
}
