// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	chatcore "github.com/codepod-dev/codepod/internal/chat"
	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/ui/styles"
)

// renderInterval caps streaming refreshes at ~30fps so token bursts
// don't flood the renderer.
const renderInterval = 33 * time.Millisecond

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme  *styles.Theme
	keyMap KeyMap

	orch   *chatcore.Orchestrator
	runner *Runner

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	// Dimensions
	width  int
	height int

	// State
	streaming bool
	mode      claude.Mode
	statusMsg string
}

// New creates a new chat model wired to the orchestrator.
func New(theme *styles.Theme, orch *chatcore.Orchestrator, runner *Runner) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.CharLimit = 8192
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	// Enter submits; ctrl+j inserts a newline.
	ta.KeyMap.InsertNewline.SetKeys("ctrl+j")
	ta.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 30,
	}
	sp.Style = theme.Spinner

	return Model{
		theme:    theme,
		keyMap:   DefaultKeyMap(),
		orch:     orch,
		runner:   runner,
		viewport: vp,
		input:    ta,
		spinner:  sp,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ConnectedMsg:
		m.mode = msg.Mode
		switch msg.Mode {
		case claude.ModeNone:
			m.statusMsg = "no transport available"
		default:
			m.statusMsg = "connected via " + msg.Mode.String()
		}
		return m, nil

	case TurnStartedMsg:
		m.streaming = true
		m.statusMsg = ""
		m.refreshViewport()
		return m, tea.Batch(m.spinner.Tick, renderTick())

	case renderTickMsg:
		if !m.streaming {
			return m, nil
		}
		m.refreshViewport()
		return m, renderTick()

	case TurnDoneMsg:
		m.streaming = false
		m.refreshViewport()
		return m, nil

	case StatusMsg:
		m.statusMsg = msg.Text
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey dispatches keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.runner.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Submit):
		if m.streaming {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.streaming = true
		m.runner.Send(text)
		m.refreshViewport()
		return m, tea.Batch(m.spinner.Tick, renderTick())

	case key.Matches(msg, m.keyMap.Stop):
		if m.streaming {
			m.runner.Stop()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Regenerate):
		if m.streaming {
			return m, nil
		}
		m.streaming = true
		m.runner.Regenerate()
		return m, tea.Batch(m.spinner.Tick, renderTick())

	case key.Matches(msg, m.keyMap.Reconnect):
		if !m.streaming {
			m.statusMsg = "probing transports..."
			m.runner.Connect()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollUp):
		m.viewport.LineUp(3)
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollDown):
		m.viewport.LineDown(3)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resize recomputes component dimensions and the markdown wrap width.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	inputHeight := m.input.Height() + 2
	viewportHeight := height - inputHeight - 2 // header + status bar
	if viewportHeight < 3 {
		viewportHeight = 3
	}

	m.viewport.Width = width
	m.viewport.Height = viewportHeight
	m.input.SetWidth(width - 2)

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = renderer
	}
}

// refreshViewport re-renders the transcript into the viewport and keeps
// it pinned to the newest output.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

// renderTick schedules the next streaming refresh.
func renderTick() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}
