// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
)

// =============================================================================
// FRAME ENVELOPE
// =============================================================================

// Frame type discriminants emitted by the CLI's stream-json output.
const (
	FrameSystem    = "system"
	FrameUser      = "user"
	FrameAssistant = "assistant"
	FrameStream    = "stream_event"
	FrameResult    = "result"

	// SubtypeInit marks the first system frame of a stream, carrying the
	// session identifier assigned by the CLI.
	SubtypeInit = "init"
)

// Envelope is one parsed frame from the transport stream. The schema is
// best-effort: fields are populated when present and left zero otherwise,
// so a frame with an unrecognized Type still decodes cleanly.
type Envelope struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Message is present on user/assistant frames.
	Message *MessagePayload `json:"message,omitempty"`

	// Event is present on stream_event frames (incremental deltas).
	Event *InnerEvent `json:"event,omitempty"`

	// Result-frame metadata.
	Usage        *Usage  `json:"usage,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	DurationMS   int64   `json:"duration_ms,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	IsError      bool    `json:"is_error,omitempty"`
	Result       string  `json:"result,omitempty"`
}

// MessagePayload carries a complete message body. Content arrives either as
// a plain string or as an array of content blocks depending on the CLI.
type MessagePayload struct {
	Role    string    `json:"role,omitempty"`
	Content BlockList `json:"content,omitempty"`
}

// InnerEvent is the nested event of a stream_event frame.
type InnerEvent struct {
	Type  string `json:"type"`
	Delta *Delta `json:"delta,omitempty"`
}

// Delta is an incremental fragment belonging to the in-progress turn.
type Delta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage carries the token counts reported by a terminal result frame.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Inner event and delta type discriminants.
const (
	EventContentBlockDelta = "content_block_delta"
	DeltaText              = "text_delta"
)

// =============================================================================
// CONTENT BLOCKS
// =============================================================================

// Content block type discriminants.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one element of a message body. Type selects which of the
// remaining fields are meaningful; unknown types are preserved as-is so a
// newer CLI does not break older clients.
type ContentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "thinking"
	Thinking string `json:"thinking,omitempty"`

	// type == "tool_use"
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// BlockList decodes a message content field that may be either a bare string
// or an array of content blocks. A bare string becomes a single text block.
type BlockList []ContentBlock

// UnmarshalJSON implements json.Unmarshaler.
func (b *BlockList) UnmarshalJSON(data []byte) error {
	// String form first: the CLI emits plain strings for simple replies.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = BlockList{TextBlock(s)}
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*b = BlockList(blocks)
	return nil
}
