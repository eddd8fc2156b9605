// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/stream"
)

// scriptedTransport replays canned wire frames through onFrame.
type scriptedTransport struct {
	frames []string
	err    error
	sends  int
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) Probe(ctx context.Context) bool { return true }

func (s *scriptedTransport) Send(ctx context.Context, prompt string, opts claude.Options, onFrame claude.FrameFunc) error {
	s.sends++
	for _, raw := range s.frames {
		var env stream.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			panic("bad test frame: " + raw)
		}
		onFrame(env)
	}
	// A non-nil err models a transport failure after the scripted frames.
	return s.err
}

// recordedUsage captures RecordUsage calls.
type recordedUsage struct {
	mu      sync.Mutex
	records []struct {
		model     string
		input     int
		output    int
		sessionID string
	}
}

func (r *recordedUsage) RecordUsage(model string, inputTokens, outputTokens int, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, struct {
		model     string
		input     int
		output    int
		sessionID string
	}{model, inputTokens, outputTokens, sessionID})
}

// fakePersister counts dirty marks and flushes.
type fakePersister struct {
	mu      sync.Mutex
	dirty   int
	flushes int
}

func (p *fakePersister) MarkDirty() {
	p.mu.Lock()
	p.dirty++
	p.mu.Unlock()
}

func (p *fakePersister) FlushNow() {
	p.mu.Lock()
	p.flushes++
	p.mu.Unlock()
}

func connectedBridge(t *testing.T, tr claude.Transport) *claude.Bridge {
	t.Helper()
	b := claude.NewBridge(tr, nil)
	if b.Connect(context.Background()) == claude.ModeNone {
		t.Fatal("bridge should connect to the scripted transport")
	}
	return b
}

// =============================================================================
// END-TO-END SEND TESTS
// =============================================================================

func TestOrchestrator_SendFullTurn(t *testing.T) {
	tr := &scriptedTransport{frames: []string{
		`{"type":"system","subtype":"init","session_id":"s1"}`,
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}}`,
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":" there"}}}`,
		`{"type":"result","usage":{"input_tokens":5,"output_tokens":2}}`,
	}}
	usage := &recordedUsage{}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), usage, nil)

	if err := o.Send(context.Background(), "Hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Text() != "Hello" {
		t.Errorf("first message = %q %q", msgs[0].Role, msgs[0].Text())
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Text() != "Hi there" {
		t.Errorf("second message = %q %q", msgs[1].Role, msgs[1].Text())
	}
	if conv.IsStreaming() {
		t.Error("streaming flag must be cleared")
	}

	in, out := o.TokenTotals()
	if in != 5 || out != 2 {
		t.Errorf("token totals = %d/%d, want 5/2", in, out)
	}
	if len(usage.records) != 1 || usage.records[0].sessionID != "s1" {
		t.Errorf("usage records = %+v", usage.records)
	}
}

func TestOrchestrator_SendNotConnected(t *testing.T) {
	// Nothing connected: the bridge has never been probed.
	tr := &scriptedTransport{}
	bridge := claude.NewBridge(tr, nil)
	conv := NewConversation()
	o := NewOrchestrator(conv, bridge, nil, nil)

	err := o.Send(context.Background(), "test")
	if !claude.IsNotConnected(err) {
		t.Fatalf("Send() error = %v, want not-connected", err)
	}

	// No network call may be attempted.
	if tr.sends != 0 {
		t.Errorf("sends = %d, want 0", tr.sends)
	}

	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	want := "Error: Claude not connected. Please start the HTTP API server or run in Tauri."
	if msgs[1].Role != RoleAssistant || msgs[1].Text() != want {
		t.Errorf("error message = %q, want %q", msgs[1].Text(), want)
	}
	if conv.IsStreaming() {
		t.Error("streaming flag must be cleared after a failure")
	}
}

func TestOrchestrator_SendGate(t *testing.T) {
	conv := NewConversation()
	conv.StartStreaming()
	o := NewOrchestrator(conv, claude.NewBridge(nil, nil), nil, nil)

	if err := o.Send(context.Background(), "while busy"); err != nil {
		t.Fatalf("gated Send() error = %v, want nil", err)
	}

	// The transcript must be untouched: no user message appended.
	if conv.Len() != 0 {
		t.Errorf("Len() = %d, want 0", conv.Len())
	}
}

func TestOrchestrator_SendEmptyIsNoop(t *testing.T) {
	tr := &scriptedTransport{}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), nil, nil)

	for _, content := range []string{"", "   ", "\n\t"} {
		if err := o.Send(context.Background(), content); err != nil {
			t.Fatalf("Send(%q) error = %v", content, err)
		}
	}

	if conv.Len() != 0 || tr.sends != 0 {
		t.Errorf("Len() = %d, sends = %d, want 0/0", conv.Len(), tr.sends)
	}
}

func TestOrchestrator_SendTransportError(t *testing.T) {
	tr := &scriptedTransport{err: errors.New("stream read failed")}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), nil, nil)

	if err := o.Send(context.Background(), "hello"); err == nil {
		t.Fatal("Send() should surface the transport error")
	}

	msgs := conv.Messages()
	if len(msgs) != 2 || msgs[1].Text() != "Error: stream read failed" {
		t.Errorf("transcript = %+v, want visible error block", msgs)
	}
	if conv.LastError() != "stream read failed" {
		t.Errorf("LastError() = %q", conv.LastError())
	}
}

func TestOrchestrator_TransportErrorKeepsPartialOutput(t *testing.T) {
	tr := &scriptedTransport{
		frames: []string{
			`{"type":"system","subtype":"init","session_id":"s1"}`,
			`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"half an answer"}}}`,
		},
		err: errors.New("connection reset"),
	}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), nil, nil)

	if err := o.Send(context.Background(), "hello"); err == nil {
		t.Fatal("Send() should surface the transport error")
	}

	// The streamed fragment survives, with the error merged into it.
	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if got := msgs[1].Text(); got != "half an answerError: connection reset" {
		t.Errorf("assistant text = %q, want partial output followed by the error", got)
	}
	if conv.IsStreaming() {
		t.Error("streaming flag must be cleared after a failure")
	}
}

func TestOrchestrator_NoUsageRecordWithoutResult(t *testing.T) {
	tr := &scriptedTransport{frames: []string{
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"cut off"}}}`,
	}}
	usage := &recordedUsage{}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), usage, nil)

	if err := o.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// No terminal frame arrived: accounting must not run speculatively.
	if len(usage.records) != 0 {
		t.Errorf("usage records = %d, want 0", len(usage.records))
	}

	// The partial content still finalizes.
	msgs := conv.Messages()
	if len(msgs) != 2 || msgs[1].Text() != "cut off" {
		t.Errorf("transcript = %+v", msgs)
	}
}

// =============================================================================
// REGENERATE TESTS
// =============================================================================

func TestOrchestrator_Regenerate(t *testing.T) {
	tr := &scriptedTransport{frames: []string{
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"take two"}}}`,
		`{"type":"result"}`,
	}}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), nil, nil)

	if err := o.Send(context.Background(), "question"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := o.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}

	// One user message, one regenerated assistant message.
	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Text() != "question" || msgs[1].Text() != "take two" {
		t.Errorf("transcript = [%q, %q]", msgs[0].Text(), msgs[1].Text())
	}
	if tr.sends != 2 {
		t.Errorf("sends = %d, want 2", tr.sends)
	}
}

func TestOrchestrator_RegenerateWithoutPrompt(t *testing.T) {
	conv := NewConversation()
	o := NewOrchestrator(conv, claude.NewBridge(nil, nil), nil, nil)

	if err := o.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate() error = %v, want nil no-op", err)
	}
	if conv.Len() != 0 {
		t.Errorf("Len() = %d, want 0", conv.Len())
	}
}

func TestOrchestrator_RegenerateRequiresAssistantLast(t *testing.T) {
	tr := &scriptedTransport{err: errors.New("down")}
	conv := NewConversation()
	o := NewOrchestrator(conv, connectedBridge(t, tr), nil, nil)

	o.Send(context.Background(), "question")
	// The failed send left an error block; remove it to simulate a bare
	// user message at the tail.
	conv.RemoveLastAssistantMessage()

	tr.err = nil
	before := conv.Len()
	// Tail is now a user message; a second removal is refused, so
	// regenerate becomes a no-op instead of resending.
	if err := o.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if conv.Len() != before {
		t.Errorf("Len() = %d, want %d", conv.Len(), before)
	}
}

// =============================================================================
// STOP TESTS
// =============================================================================

func TestOrchestrator_StopIdleIsNoop(t *testing.T) {
	conv := NewConversation()
	p := &fakePersister{}
	o := NewOrchestrator(conv, claude.NewBridge(nil, nil), nil, p)

	o.Stop()
	o.Stop()

	if p.flushes != 0 {
		t.Errorf("flushes = %d, want 0", p.flushes)
	}
}

func TestOrchestrator_StopFlushesPartial(t *testing.T) {
	conv := NewConversation()
	conv.StartStreaming()
	conv.Apply(stream.TextDelta{Text: "partial"})
	p := &fakePersister{}
	o := NewOrchestrator(conv, claude.NewBridge(nil, nil), nil, p)

	o.Stop()

	if conv.IsStreaming() {
		t.Error("Stop must clear the streaming flag")
	}
	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].Text() != "partial" {
		t.Errorf("transcript = %+v, want the partial message", msgs)
	}
	if p.flushes != 1 {
		t.Errorf("flushes = %d, want 1 (immediate flush on stop)", p.flushes)
	}
}

// =============================================================================
// PERSISTENCE TESTS
// =============================================================================

func TestOrchestrator_SendMarksDirty(t *testing.T) {
	tr := &scriptedTransport{frames: []string{`{"type":"result"}`}}
	conv := NewConversation()
	p := &fakePersister{}
	o := NewOrchestrator(conv, connectedBridge(t, tr), nil, p)

	if err := o.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if p.dirty == 0 {
		t.Error("Send must schedule a save")
	}
}
