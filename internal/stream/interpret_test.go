// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"testing"
)

// =============================================================================
// DISPATCH TESTS
// =============================================================================

func TestInterpret_SessionStarted(t *testing.T) {
	ev := Interpret(Envelope{Type: FrameSystem, Subtype: SubtypeInit, SessionID: "s1"})

	started, ok := ev.(SessionStarted)
	if !ok {
		t.Fatalf("Interpret() = %T, want SessionStarted", ev)
	}
	if started.SessionID != "s1" {
		t.Errorf("SessionID = %q, want \"s1\"", started.SessionID)
	}
}

func TestInterpret_TextDelta(t *testing.T) {
	env := Envelope{
		Type: FrameStream,
		Event: &InnerEvent{
			Type:  EventContentBlockDelta,
			Delta: &Delta{Type: DeltaText, Text: "Hi"},
		},
	}

	ev := Interpret(env)
	delta, ok := ev.(TextDelta)
	if !ok {
		t.Fatalf("Interpret() = %T, want TextDelta", ev)
	}
	if delta.Text != "Hi" {
		t.Errorf("Text = %q, want \"Hi\"", delta.Text)
	}
}

func TestInterpret_FullMessage(t *testing.T) {
	env := Envelope{
		Type: FrameAssistant,
		Message: &MessagePayload{
			Content: BlockList{TextBlock("hello"), {Type: BlockThinking, Thinking: "hm"}},
		},
	}

	ev := Interpret(env)
	full, ok := ev.(FullMessage)
	if !ok {
		t.Fatalf("Interpret() = %T, want FullMessage", ev)
	}
	if len(full.Blocks) != 2 {
		t.Errorf("Blocks = %d, want 2", len(full.Blocks))
	}
}

func TestInterpret_TurnCompleted(t *testing.T) {
	ev := Interpret(Envelope{
		Type:  FrameResult,
		Usage: &Usage{InputTokens: 5, OutputTokens: 2},
	})

	done, ok := ev.(TurnCompleted)
	if !ok {
		t.Fatalf("Interpret() = %T, want TurnCompleted", ev)
	}
	if done.Usage == nil || done.Usage.InputTokens != 5 || done.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %+v, want {5 2}", done.Usage)
	}
}

func TestInterpret_TurnCompletedWithoutUsage(t *testing.T) {
	done, ok := Interpret(Envelope{Type: FrameResult}).(TurnCompleted)
	if !ok {
		t.Fatal("result frame without usage should still complete the turn")
	}
	if done.Usage != nil {
		t.Errorf("Usage = %+v, want nil", done.Usage)
	}
}

// =============================================================================
// IGNORED FRAME TESTS
// =============================================================================

func TestInterpret_IgnoredFrames(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{"unknown type", Envelope{Type: "telemetry"}},
		{"empty type", Envelope{}},
		{"system non-init", Envelope{Type: FrameSystem, Subtype: "tick"}},
		{"stream without event", Envelope{Type: FrameStream}},
		{"stream with non-delta event", Envelope{Type: FrameStream, Event: &InnerEvent{Type: "content_block_start"}}},
		{"stream with non-text delta", Envelope{Type: FrameStream, Event: &InnerEvent{
			Type:  EventContentBlockDelta,
			Delta: &Delta{Type: "input_json_delta"},
		}}},
		{"assistant without message", Envelope{Type: FrameAssistant}},
		{"assistant with empty content", Envelope{Type: FrameAssistant, Message: &MessagePayload{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if ev := Interpret(tc.env); ev != nil {
				t.Errorf("Interpret(%+v) = %#v, want nil", tc.env, ev)
			}
		})
	}
}
