// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// CONVERSATION STATE MACHINE
// =============================================================================

// Conversation owns one session's transcript and streaming buffer.
//
// States are Idle and Streaming. A send moves Idle to Streaming; finalize,
// stop, or error moves back to Idle. Exactly one message is assembled at a
// time: the buffer exists only while streaming and becomes an assistant
// Message on finalize.
type Conversation struct {
	mu sync.Mutex

	messages  []Message
	buffer    []stream.ContentBlock
	streaming bool
	lastError string

	// sessionID is the CLI-side session, learned from the init frame.
	sessionID string

	// model tags finalized assistant messages.
	model string

	// seenDelta suppresses full-message frames once incremental deltas
	// have arrived for the current turn. Upstream CLIs are observed to
	// emit the same content both ways; applying both duplicates it.
	seenDelta bool
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of transcript messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// IsStreaming reports whether a send is in flight.
func (c *Conversation) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// StreamingText returns the text assembled so far for the in-progress
// assistant turn, for live rendering.
func (c *Conversation) StreamingText() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := ""
	for _, block := range c.buffer {
		if block.Type == stream.BlockText {
			text += block.Text
		}
	}
	return text
}

// LastError returns the most recent error message, empty when none.
func (c *Conversation) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// SessionID returns the CLI session identifier from the last init frame.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID seeds the CLI session identifier, used when restoring a
// saved session so the next send resumes it. Overwritten by the next
// init frame.
func (c *Conversation) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// SetModel sets the model tag applied to finalized assistant messages.
func (c *Conversation) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Model returns the current model tag.
func (c *Conversation) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// =============================================================================
// TRANSCRIPT MUTATION
// =============================================================================

// AddUserMessage appends a user message and returns it. The caller is
// expected to follow with StartStreaming.
func (c *Conversation) AddUserMessage(text string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := NewUserMessage(c.lastIDLocked(), text)
	c.messages = append(c.messages, msg)
	return msg
}

// AddAssistantMessage appends a pre-built assistant message outside the
// streaming path (error blocks, restored transcripts).
func (c *Conversation) AddAssistantMessage(text string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := NewAssistantMessage(c.lastIDLocked(), []stream.ContentBlock{{Type: stream.BlockText, Text: text}}, c.model)
	c.messages = append(c.messages, msg)
	return msg
}

// Restore replaces the transcript with stored messages (session load).
func (c *Conversation) Restore(messages []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append([]Message(nil), messages...)
	c.buffer = nil
	c.streaming = false
	c.lastError = ""
	c.seenDelta = false
}

// RemoveLastAssistantMessage removes the most recent message if it is an
// assistant message. Returns false (and leaves the transcript unchanged)
// otherwise.
func (c *Conversation) RemoveLastAssistantMessage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.messages)
	if n == 0 || c.messages[n-1].Role != RoleAssistant {
		return false
	}
	c.messages = c.messages[:n-1]
	return true
}

// EditMessage replaces the text content of a single message by ID.
func (c *Conversation) EditMessage(id, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content = []stream.ContentBlock{{Type: stream.BlockText, Text: text}}
			return true
		}
	}
	return false
}

// DeleteMessage removes a single message by ID, relinking the chain so
// the successor points at the predecessor.
func (c *Conversation) DeleteMessage(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.messages[i].ID != id {
			continue
		}
		parent := c.messages[i].ParentID
		c.messages = append(c.messages[:i], c.messages[i+1:]...)
		if i < len(c.messages) {
			c.messages[i].ParentID = parent
		}
		return true
	}
	return false
}

// =============================================================================
// STREAMING LIFECYCLE
// =============================================================================

// StartStreaming clears the buffer and error and enters the Streaming
// state.
func (c *Conversation) StartStreaming() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = nil
	c.lastError = ""
	c.streaming = true
}

// Apply mutates the conversation according to one interpreted event.
func (c *Conversation) Apply(ev stream.Event) {
	switch e := ev.(type) {
	case stream.SessionStarted:
		c.mu.Lock()
		c.sessionID = e.SessionID
		c.seenDelta = false
		c.mu.Unlock()

	case stream.TextDelta:
		c.applyTextDelta(e.Text)

	case stream.FullMessage:
		c.applyFullMessage(e.Blocks)
	}
}

// applyTextDelta appends a fragment, merging into the last block when it
// is text so a finalized message never holds two adjacent text blocks.
// Deltas arriving after the turn ended (a stop racing the frame loop) are
// dropped; the buffer only exists while streaming.
func (c *Conversation) applyTextDelta(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return
	}
	c.seenDelta = true
	if n := len(c.buffer); n > 0 && c.buffer[n-1].Type == stream.BlockText {
		c.buffer[n-1].Text += text
		return
	}
	c.buffer = append(c.buffer, stream.ContentBlock{Type: stream.BlockText, Text: text})
}

// applyFullMessage applies a consolidated message payload, but only while
// no delta has arrived since the last session init (anti-duplication).
func (c *Conversation) applyFullMessage(blocks []stream.ContentBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming || c.seenDelta {
		return
	}
	for _, block := range blocks {
		if n := len(c.buffer); n > 0 && block.Type == stream.BlockText && c.buffer[n-1].Type == stream.BlockText {
			c.buffer[n-1].Text += block.Text
			continue
		}
		c.buffer = append(c.buffer, block)
	}
}

// FinalizeStreaming converts a non-empty buffer into an assistant message
// and returns to Idle. Idempotent: a second call with an empty buffer
// changes nothing but still clears the streaming flag.
func (c *Conversation) FinalizeStreaming() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var finalized *Message
	if len(c.buffer) > 0 {
		msg := NewAssistantMessage(c.lastIDLocked(), c.buffer, c.model)
		c.messages = append(c.messages, msg)
		c.buffer = nil
		finalized = &msg
	}
	c.streaming = false
	return finalized
}

// StopStreaming finalizes on user cancellation. Partial output is
// preserved, not discarded.
func (c *Conversation) StopStreaming() *Message {
	return c.FinalizeStreaming()
}

// SetError records a failure and finalizes the turn in one step: the
// "Error: …" text is appended to whatever partial output is buffered
// (merged per the text rule), so the transcript gets a single assistant
// message holding both the partial output and the error.
func (c *Conversation) SetError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastError = message

	errText := "Error: " + message
	if n := len(c.buffer); n > 0 && c.buffer[n-1].Type == stream.BlockText {
		c.buffer[n-1].Text += errText
	} else {
		c.buffer = append(c.buffer, stream.ContentBlock{Type: stream.BlockText, Text: errText})
	}

	msg := NewAssistantMessage(c.lastIDLocked(), c.buffer, c.model)
	c.messages = append(c.messages, msg)
	c.buffer = nil
	c.streaming = false
}

// lastIDLocked returns the ID of the last message. Callers hold c.mu.
func (c *Conversation) lastIDLocked() string {
	if n := len(c.messages); n > 0 {
		return c.messages[n-1].ID
	}
	return ""
}
