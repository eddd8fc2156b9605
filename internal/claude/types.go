// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

// =============================================================================
// REQUEST OPTIONS
// =============================================================================

// Options carries the per-send parameters forwarded to the CLI.
type Options struct {
	// Model selects the model identifier, empty for the CLI default.
	Model string

	// SessionID resumes a specific CLI session.
	SessionID string

	// ContinueSession continues the most recent session instead of
	// resuming by ID. Takes precedence over SessionID.
	ContinueSession bool

	// Cwd is the project directory the CLI should operate in.
	Cwd string
}

// =============================================================================
// CLI SELECTION
// =============================================================================

// CliType identifies which underlying CLI binary the proxy targets.
type CliType string

const (
	CliClaude    CliType = "claude"
	CliCodeBuddy CliType = "codebuddy"
)

// AvailableClis reports which CLI binaries the proxy detected.
type AvailableClis struct {
	Claude    bool `json:"claude"`
	CodeBuddy bool `json:"codebuddy"`
}

// =============================================================================
// WIRE PAYLOADS (HTTP proxy protocol)
// =============================================================================

// agentRequest is the body of POST /agent.
type agentRequest struct {
	Prompt       string   `json:"prompt"`
	Model        string   `json:"model,omitempty"`
	OutputFormat string   `json:"outputFormat"`
	SessionID    string   `json:"sessionId,omitempty"`
	Continue     bool     `json:"continue,omitempty"`
	AddDir       []string `json:"addDir,omitempty"`
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string        `json:"status"`
	CurrentCli    CliType       `json:"currentCli"`
	AvailableClis AvailableClis `json:"availableClis"`
}

// CliStatus is the body of GET /cli.
type CliStatus struct {
	CurrentCli    CliType  `json:"currentCli"`
	CliPath       string   `json:"cliPath"`
	AvailableClis []string `json:"availableClis"`
}

// Completion is the body of a non-streaming POST /agent response.
type Completion struct {
	Output string `json:"output"`
	Usage  *struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
	} `json:"usage,omitempty"`
}

// errorResponse is the proxy's error body shape.
type errorResponse struct {
	Error string `json:"error"`
}
