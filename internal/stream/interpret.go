// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// =============================================================================
// SEMANTIC EVENTS
// =============================================================================

// Event is one semantic conversation event interpreted from a frame.
// The set is closed: SessionStarted, TextDelta, FullMessage, TurnCompleted.
type Event interface {
	isEvent()
}

// SessionStarted is emitted for a system/init frame carrying the session
// identifier assigned by the CLI.
type SessionStarted struct {
	SessionID string
}

// TextDelta is an incremental text fragment belonging to the in-progress
// assistant turn.
type TextDelta struct {
	Text string
}

// FullMessage is a complete assistant message payload. Some CLIs emit the
// same content both as deltas and as a consolidated assistant frame; the
// suppression of duplicates is cross-frame state and belongs to the
// conversation state machine, not here.
type FullMessage struct {
	Blocks []ContentBlock
}

// TurnCompleted is the terminal event of a turn. Usage is nil when the
// result frame carried no token counts.
type TurnCompleted struct {
	Usage *Usage
}

func (SessionStarted) isEvent() {}
func (TextDelta) isEvent()      {}
func (FullMessage) isEvent()    {}
func (TurnCompleted) isEvent()  {}

// =============================================================================
// INTERPRETER
// =============================================================================

// Interpret maps a frame to its semantic event, or nil for frames that carry
// no conversation content (unknown types, malformed shapes, non-init system
// frames). It is a pure function and never fails: forward compatibility with
// newer CLI schemas means unrecognized input is ignored, not rejected.
func Interpret(env Envelope) Event {
	switch env.Type {
	case FrameSystem:
		if env.Subtype == SubtypeInit {
			return SessionStarted{SessionID: env.SessionID}
		}
		return nil

	case FrameStream:
		if env.Event == nil || env.Event.Type != EventContentBlockDelta {
			return nil
		}
		if env.Event.Delta == nil || env.Event.Delta.Type != DeltaText {
			return nil
		}
		return TextDelta{Text: env.Event.Delta.Text}

	case FrameAssistant:
		if env.Message == nil || len(env.Message.Content) == 0 {
			return nil
		}
		return FullMessage{Blocks: env.Message.Content}

	case FrameResult:
		return TurnCompleted{Usage: env.Usage}

	default:
		return nil
	}
}
