// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// IPC BRIDGE SURFACE
// =============================================================================

// Push-event tags delivered on a stream subscription.
const (
	EventStream = "stream"
	EventDone   = "done"
)

// BridgeEvent is one push event from the invocation channel. Line carries
// the raw output line for stream events and is empty for done events.
type BridgeEvent struct {
	EventType string `json:"event_type"`
	Line      string `json:"data"`
}

// StartRequest is the input of the start-stream call.
type StartRequest struct {
	Prompt    string  `json:"prompt"`
	RequestID string  `json:"requestId"`
	Options   Options `json:"options"`
}

// Invoker is the host-provided invocation/event-subscription channel. The
// default implementation spawns the CLI directly (see CLIInvoker); a
// desktop shell can supply its own backed by the host's command bridge.
type Invoker interface {
	// Version performs the version-check call; an error means the CLI is
	// not usable through this channel.
	Version(ctx context.Context) (string, error)

	// Start begins a CLI-backed task and returns immediately. Output is
	// delivered asynchronously on the subscription for req.RequestID.
	Start(ctx context.Context, req StartRequest) error

	// Subscribe opens the push-event channel for a request. The returned
	// func tears the subscription down.
	Subscribe(requestID string) (<-chan BridgeEvent, func())
}

// =============================================================================
// IPC TRANSPORT
// =============================================================================

// subscriptionGrace is how long a subscription outlives stream completion.
// Tearing down immediately can drop trailing events still in flight.
const subscriptionGrace = time.Second

// IPCTransport reaches the CLI through a direct invocation channel.
type IPCTransport struct {
	inv Invoker

	// version caches the last successful version check.
	version string
}

// NewIPCTransport creates an IPC transport over the given invoker.
func NewIPCTransport(inv Invoker) *IPCTransport {
	return &IPCTransport{inv: inv}
}

// Name implements Transport.
func (t *IPCTransport) Name() string {
	return "ipc"
}

// Probe implements Transport by running the version check.
func (t *IPCTransport) Probe(ctx context.Context) bool {
	version, err := t.inv.Version(ctx)
	if err != nil {
		return false
	}
	t.version = version
	return true
}

// Version returns the CLI version from the last successful probe.
func (t *IPCTransport) Version() string {
	return t.version
}

// Send implements Transport. It issues the start-stream call, then drains
// the per-request subscription until a done event or cancellation. Raw
// lines pass through the shared frame parser, same as the HTTP transport.
func (t *IPCTransport) Send(ctx context.Context, prompt string, opts Options, onFrame FrameFunc) error {
	requestID := uuid.NewString()

	events, unsubscribe := t.inv.Subscribe(requestID)
	// Delayed teardown: trailing events may still arrive after done.
	defer time.AfterFunc(subscriptionGrace, unsubscribe)

	err := t.inv.Start(ctx, StartRequest{
		Prompt:    prompt,
		RequestID: requestID,
		Options:   opts,
	})
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to start CLI stream", Cause: err}
	}

	parser := stream.NewParser()

	for {
		select {
		case <-ctx.Done():
			// User-initiated stop: stop consuming, success path.
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.EventType {
			case EventStream:
				for _, frame := range parser.Feed(ev.Line + "\n") {
					onFrame(frame)
				}
			case EventDone:
				return nil
			}
		}
	}
}
