// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// =============================================================================
// CLI INVOKER
// =============================================================================

// CLIInvoker is the default Invoker: it spawns the CLI binary directly and
// republishes its stdout lines on per-request subscriptions. This is the
// "IPC mode" of a host with no desktop bridge — the invocation channel and
// the CLI process live in the same process tree.
type CLIInvoker struct {
	// Binary is the CLI executable (default: "claude").
	Binary string

	mu   sync.Mutex
	subs map[string]chan BridgeEvent
}

// NewCLIInvoker creates an invoker for the given binary, or "claude" when
// empty.
func NewCLIInvoker(binary string) *CLIInvoker {
	if binary == "" {
		binary = "claude"
	}
	return &CLIInvoker{
		Binary: binary,
		subs:   make(map[string]chan BridgeEvent),
	}
}

// Version implements Invoker by running the CLI's --version flag.
func (inv *CLIInvoker) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, inv.Binary, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Subscribe implements Invoker.
func (inv *CLIInvoker) Subscribe(requestID string) (<-chan BridgeEvent, func()) {
	ch := make(chan BridgeEvent, 64)

	inv.mu.Lock()
	inv.subs[requestID] = ch
	inv.mu.Unlock()

	unsubscribe := func() {
		inv.mu.Lock()
		delete(inv.subs, requestID)
		inv.mu.Unlock()
	}
	return ch, unsubscribe
}

// Start implements Invoker. It spawns the CLI with stream-json output and
// acks immediately; a goroutine relays stdout lines to the subscription,
// followed by a done event.
func (inv *CLIInvoker) Start(ctx context.Context, req StartRequest) error {
	args := []string{"-p", req.Prompt, "--output-format", "stream-json", "--verbose", "--include-partial-messages"}

	if req.Options.Model != "" {
		args = append(args, "--model", req.Options.Model)
	}
	if req.Options.ContinueSession {
		args = append(args, "--continue")
	} else if req.Options.SessionID != "" {
		args = append(args, "--resume", req.Options.SessionID)
	}

	cmd := exec.CommandContext(ctx, inv.Binary, args...)
	if req.Options.Cwd != "" {
		cmd.Dir = req.Options.Cwd
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		// Tool results can produce very long lines.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			inv.publish(req.RequestID, BridgeEvent{EventType: EventStream, Line: line})
		}

		// Reap the process; exit status is irrelevant once the stream ended.
		_ = cmd.Wait()
		inv.publish(req.RequestID, BridgeEvent{EventType: EventDone})
	}()

	return nil
}

// publish delivers an event to the request's subscription if it is still
// open, dropping the event otherwise.
func (inv *CLIInvoker) publish(requestID string, ev BridgeEvent) {
	inv.mu.Lock()
	ch, ok := inv.subs[requestID]
	inv.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- ev:
	default:
		// Subscriber stopped draining (cancelled send); do not block.
	}
}
