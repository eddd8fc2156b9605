// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// SIDE-EFFECT COLLABORATORS
// =============================================================================

// UsageRecorder receives token accounting after each completed turn.
type UsageRecorder interface {
	RecordUsage(model string, inputTokens, outputTokens int, sessionID string)
}

// Persister is the session persistence side-channel. MarkDirty schedules
// a coalesced save; FlushNow writes immediately, used before operations
// whose outcome must not be lost.
type Persister interface {
	MarkDirty()
	FlushNow()
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives a conversation through the transport bridge: it
// appends the user message, opens the stream, routes interpreted events
// into the state machine, and runs side effects after finalization.
type Orchestrator struct {
	conv   *Conversation
	bridge *claude.Bridge

	// Cwd is the project directory forwarded to the CLI.
	Cwd string

	// Continue asks the CLI to continue its most recent session on the
	// first send. Cleared once an init frame establishes a session ID.
	Continue bool

	usage   UsageRecorder
	persist Persister

	mu         sync.Mutex
	cancel     context.CancelFunc
	lastPrompt string

	totalInput  int
	totalOutput int
}

// NewOrchestrator creates an orchestrator over a conversation and bridge.
// Usage and persistence collaborators may be nil.
func NewOrchestrator(conv *Conversation, bridge *claude.Bridge, usage UsageRecorder, persist Persister) *Orchestrator {
	return &Orchestrator{
		conv:    conv,
		bridge:  bridge,
		usage:   usage,
		persist: persist,
	}
}

// Conversation returns the conversation this orchestrator drives.
func (o *Orchestrator) Conversation() *Conversation {
	return o.conv
}

// Bridge returns the transport bridge, for status display.
func (o *Orchestrator) Bridge() *claude.Bridge {
	return o.bridge
}

// TokenTotals returns the cumulative input/output token counters.
func (o *Orchestrator) TokenTotals() (input, output int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totalInput, o.totalOutput
}

// =============================================================================
// SEND
// =============================================================================

// Send relays one prompt and blocks until the stream finishes. It is a
// no-op when content trims to empty or a send is already in flight (the
// streaming gate). Transport failures are recorded in the transcript as a
// visible "Error: " block and also returned.
func (o *Orchestrator) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" || o.conv.IsStreaming() {
		return nil
	}

	o.conv.AddUserMessage(content)

	o.mu.Lock()
	o.lastPrompt = content
	o.mu.Unlock()

	return o.run(ctx, content)
}

// Regenerate removes the most recent assistant message and replays the
// remembered last prompt against the existing transcript (the original
// user message stays; no duplicate is appended). No-op when there is no
// prompt to replay or the last message is not an assistant message.
func (o *Orchestrator) Regenerate(ctx context.Context) error {
	o.mu.Lock()
	prompt := o.lastPrompt
	o.mu.Unlock()

	if prompt == "" || o.conv.IsStreaming() {
		return nil
	}
	if !o.conv.RemoveLastAssistantMessage() {
		return nil
	}

	return o.run(ctx, prompt)
}

// run executes one streaming turn: transport selection, event routing,
// finalization, and post-turn side effects.
func (o *Orchestrator) run(ctx context.Context, prompt string) error {
	o.conv.StartStreaming()
	o.markDirty()

	o.mu.Lock()
	sendCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
	}()

	transport, err := o.bridge.Transport()
	if err != nil {
		// Fail fast: no probe, no network call.
		o.fail(err)
		return err
	}

	opts := claude.Options{
		Model:           o.conv.Model(),
		SessionID:       o.conv.SessionID(),
		ContinueSession: o.Continue && o.conv.SessionID() == "",
		Cwd:             o.Cwd,
	}

	var turnUsage *stream.Usage
	err = transport.Send(sendCtx, prompt, opts, func(env stream.Envelope) {
		ev := stream.Interpret(env)
		if ev == nil {
			return
		}
		o.conv.Apply(ev)
		if done, ok := ev.(stream.TurnCompleted); ok {
			turnUsage = done.Usage
		}
	})
	if err != nil {
		o.fail(err)
		return err
	}

	o.conv.FinalizeStreaming()

	// Token accounting runs only after the terminal frame, never
	// speculatively.
	if turnUsage != nil {
		o.mu.Lock()
		o.totalInput += turnUsage.InputTokens
		o.totalOutput += turnUsage.OutputTokens
		o.mu.Unlock()

		if o.usage != nil {
			o.usage.RecordUsage(o.conv.Model(), turnUsage.InputTokens, turnUsage.OutputTokens, o.conv.SessionID())
		}
	}

	o.markDirty()
	return nil
}

// =============================================================================
// STOP / RECONNECT
// =============================================================================

// Stop cancels the in-flight send and finalizes whatever partial content
// was buffered. Idempotent: stopping an idle conversation is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if o.conv.IsStreaming() {
		o.conv.StopStreaming()
		// Partial content must survive even an immediate exit.
		o.flushNow()
	}
}

// Reconnect re-runs the transport availability probes on demand. There is
// no background retry loop: a failed send surfaces immediately instead of
// silently retrying, which avoids duplicate CLI invocations.
func (o *Orchestrator) Reconnect(ctx context.Context) claude.Mode {
	return o.bridge.Connect(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

// fail routes every failure through one path: record the error, return to
// Idle, and append the uniform "Error: " block to the transcript.
func (o *Orchestrator) fail(err error) {
	o.conv.SetError(err.Error())
	o.markDirty()
}

func (o *Orchestrator) markDirty() {
	if o.persist != nil {
		o.persist.MarkDirty()
	}
}

func (o *Orchestrator) flushNow() {
	if o.persist != nil {
		o.persist.FlushNow()
	}
}
