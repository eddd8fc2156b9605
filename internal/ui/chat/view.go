// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	chatcore "github.com/codepod-dev/codepod/internal/chat"
	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/stream"
	"github.com/codepod-dev/codepod/internal/ui/styles"
	"github.com/codepod-dev/codepod/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// renderHeader renders the title line with the active model.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("codepod")
	model := m.theme.HeaderHint.Render(m.orch.Conversation().Model())
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(model) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + model)
}

// renderConversation renders the transcript plus any in-flight stream.
func (m Model) renderConversation() string {
	conv := m.orch.Conversation()
	msgs := conv.Messages()

	var sections []string
	for _, msg := range msgs {
		sections = append(sections, m.renderMessage(msg))
	}

	if conv.IsStreaming() {
		sections = append(sections, m.renderStreaming(conv.StreamingText()))
	}

	if len(sections) == 0 {
		hint := m.theme.HeaderHint.Render("Send a message to start. ctrl+j for newline, esc to stop a reply.")
		return "\n" + hint
	}
	return strings.Join(sections, "\n\n")
}

// renderMessage renders one finished turn.
func (m Model) renderMessage(msg chatcore.Message) string {
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}

	if msg.Role == chatcore.RoleUser {
		label := m.theme.UserLabel.Render("You")
		body := m.theme.UserMessage.Width(wrap).Render(msg.Text())
		return label + "\n" + body
	}

	label := m.theme.AssistantLabel.Render("Assistant")
	var parts []string
	for _, block := range msg.Content {
		switch block.Type {
		case stream.BlockText:
			parts = append(parts, m.renderMarkdown(block.Text))
		case stream.BlockThinking:
			// Thinking blocks stay out of the transcript.
		case stream.BlockToolUse:
			parts = append(parts, m.theme.ToolNote.Render(fmt.Sprintf("[tool: %s]", block.Name)))
		case stream.BlockToolResult:
			parts = append(parts, m.theme.ToolNote.Render("[tool result]"))
		}
	}
	body := strings.Join(parts, "\n")
	if strings.HasPrefix(msg.Text(), "Error: ") {
		body = m.theme.ErrorMessage.Render(msg.Text())
	}
	return label + "\n" + m.theme.AssistantMessage.Width(wrap).Render(body)
}

// renderStreaming renders the partial assistant reply with the spinner.
func (m Model) renderStreaming(text string) string {
	label := m.theme.AssistantLabel.Render("Assistant")
	indicator := m.spinner.View() + " " + m.theme.ThinkingText.Render("thinking")
	if text == "" {
		return label + "\n" + indicator
	}
	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	body := m.theme.AssistantMessage.Width(wrap).Render(text)
	return label + "\n" + body + "\n" + indicator
}

// renderMarkdown renders assistant markdown, falling back to plain text
// when the renderer is unavailable or errors.
func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// renderStatusBar renders transport mode, token totals, and key hints.
func (m Model) renderStatusBar() string {
	var mode string
	switch m.mode {
	case claude.ModeIPC:
		mode = m.theme.ModeIPC.Render("IPC")
	case claude.ModeHTTP:
		mode = m.theme.ModeHTTP.Render("HTTP")
	default:
		mode = m.theme.ModeOffline.Render("OFFLINE")
	}

	in, out := m.orch.TokenTotals()
	tokens := m.theme.TokenCount.Render(
		fmt.Sprintf("↑%s ↓%s", util.FormatTokens(in), util.FormatTokens(out)))

	var middle string
	if m.statusMsg != "" {
		middle = m.theme.HeaderHint.Render(m.statusMsg)
	} else if m.theme.GetLayoutMode() != styles.LayoutNarrow {
		middle = m.renderShortcuts()
	}

	left := mode + "  " + tokens
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(middle) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + middle)
}

// renderShortcuts renders the key hint cluster.
func (m Model) renderShortcuts() string {
	pairs := []struct{ key, desc string }{
		{"enter", "send"},
		{"esc", "stop"},
		{"^r", "retry"},
		{"^t", "reconnect"},
		{"^c", "quit"},
	}
	var parts []string
	for _, p := range pairs {
		parts = append(parts,
			m.theme.ShortcutKey.Render(p.key)+" "+m.theme.ShortcutDesc.Render(p.desc))
	}
	return strings.Join(parts, "  ")
}
