// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"context"
	"sync"
	"time"

	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// TRANSPORT INTERFACE
// =============================================================================

// FrameFunc receives each parsed frame, in arrival order.
type FrameFunc func(stream.Envelope)

// Transport is one mechanism for reaching the external CLI.
//
// Send blocks until the stream completes and invokes onFrame zero or more
// times along the way. A nil return means the stream ended normally; this
// includes context cancellation, because a user-initiated stop is not a
// failure. A non-nil return means the transport failed and no further
// frames will arrive.
type Transport interface {
	// Name identifies the transport for status display.
	Name() string

	// Probe is a best-effort availability check with a short timeout.
	Probe(ctx context.Context) bool

	// Send relays a prompt and streams back parsed frames.
	Send(ctx context.Context, prompt string, opts Options, onFrame FrameFunc) error
}

// DefaultProbeTimeout bounds availability probes.
const DefaultProbeTimeout = 3 * time.Second

// =============================================================================
// BRIDGE
// =============================================================================

// Mode is the currently selected transport.
type Mode int

const (
	// ModeNone means no transport passed its probe.
	ModeNone Mode = iota
	ModeIPC
	ModeHTTP
)

// String returns the mode name for status display.
func (m Mode) String() string {
	switch m {
	case ModeIPC:
		return "ipc"
	case ModeHTTP:
		return "http"
	default:
		return "none"
	}
}

// Bridge selects between the IPC and HTTP transports and remembers the
// outcome. It is an explicit object owned by the orchestrator rather than
// shared module state; callers that need connection status receive the
// Bridge itself.
type Bridge struct {
	mu   sync.Mutex
	ipc  Transport
	http Transport
	mode Mode
}

// NewBridge creates a bridge over the given transports. Either may be nil
// when that mode is not built into the host.
func NewBridge(ipc, http Transport) *Bridge {
	return &Bridge{ipc: ipc, http: http}
}

// Connect runs the availability probes and records the selected mode:
// IPC first, HTTP as fallback, none when both fail. Safe to call again at
// any time (user-triggered reconnect); there is no background retry loop.
func (b *Bridge) Connect(ctx context.Context) Mode {
	mode := ModeNone
	if b.ipc != nil && probe(ctx, b.ipc) {
		mode = ModeIPC
	} else if b.http != nil && probe(ctx, b.http) {
		mode = ModeHTTP
	}

	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()
	return mode
}

// Mode returns the transport selected by the last Connect.
func (b *Bridge) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Reset forgets the selected transport. The next send fails fast until
// Connect succeeds again.
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.mode = ModeNone
	b.mu.Unlock()
}

// Transport returns the active transport, or ErrNotConnected when no probe
// has succeeded. No network activity happens here.
func (b *Bridge) Transport() (Transport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.mode {
	case ModeIPC:
		return b.ipc, nil
	case ModeHTTP:
		return b.http, nil
	default:
		return nil, ErrNotConnected
	}
}

// probe bounds a transport probe with the default timeout.
func probe(ctx context.Context, t Transport) bool {
	probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()
	return t.Probe(probeCtx)
}
