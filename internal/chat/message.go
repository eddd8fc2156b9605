// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one turn in the conversation. Messages form a linear chain:
// ParentID always equals the previous message's ID (empty for the first).
type Message struct {
	ID        string                `json:"id"`
	ParentID  string                `json:"parentId,omitempty"`
	Role      Role                  `json:"role"`
	Content   []stream.ContentBlock `json:"content"`
	Timestamp time.Time             `json:"timestamp"`

	// Model identifies the model that produced an assistant message.
	Model string `json:"model,omitempty"`
}

// NewUserMessage creates a user message with a single text block.
func NewUserMessage(parentID, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Role:      RoleUser,
		Content:   []stream.ContentBlock{{Type: stream.BlockText, Text: text}},
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant message from accumulated blocks.
func NewAssistantMessage(parentID string, blocks []stream.ContentBlock, model string) Message {
	return Message{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Role:      RoleAssistant,
		Content:   blocks,
		Timestamp: time.Now(),
		Model:     model,
	}
}

// Text returns the concatenated text blocks of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, block := range m.Content {
		if block.Type == stream.BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
