// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatcore "github.com/codepod-dev/codepod/internal/chat"
)

// =============================================================================
// TURN RUNNER
// =============================================================================

// Runner executes orchestrator turns off the Bubble Tea event loop and
// reports progress back through program messages. The program reference
// is set after tea.NewProgram, since the program needs the model first.
type Runner struct {
	orch    *chatcore.Orchestrator
	program *tea.Program
}

// NewRunner creates a runner for the given orchestrator.
func NewRunner(orch *chatcore.Orchestrator) *Runner {
	return &Runner{orch: orch}
}

// SetProgram attaches the Bubble Tea program used for message delivery.
func (r *Runner) SetProgram(p *tea.Program) {
	r.program = p
}

// Connect probes transports in the background and reports the selected
// mode.
func (r *Runner) Connect() {
	go func() {
		mode := r.orch.Reconnect(context.Background())
		r.send(ConnectedMsg{Mode: mode})
	}()
}

// Send runs one full turn for the prompt.
func (r *Runner) Send(prompt string) {
	go func() {
		r.send(TurnStartedMsg{StartTime: time.Now()})
		err := r.orch.Send(context.Background(), prompt)
		r.send(TurnDoneMsg{Err: err})
	}()
}

// Regenerate re-runs the last prompt.
func (r *Runner) Regenerate() {
	go func() {
		r.send(TurnStartedMsg{StartTime: time.Now()})
		err := r.orch.Regenerate(context.Background())
		r.send(TurnDoneMsg{Err: err})
	}()
}

// Stop cancels the in-flight turn; the running Send goroutine still
// delivers its TurnDoneMsg.
func (r *Runner) Stop() {
	r.orch.Stop()
}

func (r *Runner) send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}
