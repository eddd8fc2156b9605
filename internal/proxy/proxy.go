// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultPort is the proxy's default listen port.
	DefaultPort = 3002

	// Version is the proxy version reported by /health.
	Version = "proxy-1.1.0"

	// MaxRequestBodySize bounds request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024
)

// =============================================================================
// CLI CONFIGURATION
// =============================================================================

// CliConfig describes how to invoke one CLI binary.
type CliConfig struct {
	// Path is the binary path, overridable via environment.
	Path string

	// SkipPermissions is the CLI's non-interactive approval flag.
	SkipPermissions string

	// RequiresVerbose is set for CLIs whose stream-json output needs
	// --verbose.
	RequiresVerbose bool
}

// defaultCliConfigs builds the known CLI registry, honoring CLAUDE_PATH
// and CODEBUDDY_PATH overrides.
func defaultCliConfigs() map[claude.CliType]CliConfig {
	claudePath := os.Getenv("CLAUDE_PATH")
	if claudePath == "" {
		claudePath = "claude"
	}
	codebuddyPath := os.Getenv("CODEBUDDY_PATH")
	if codebuddyPath == "" {
		codebuddyPath = "codebuddy"
	}

	return map[claude.CliType]CliConfig{
		claude.CliClaude: {
			Path:            claudePath,
			SkipPermissions: "--dangerously-skip-permissions",
			RequiresVerbose: true,
		},
		claude.CliCodeBuddy: {
			Path:            codebuddyPath,
			SkipPermissions: "-y",
			RequiresVerbose: false,
		},
	}
}

// =============================================================================
// CLI RUNNER
// =============================================================================

// Runner abstracts CLI process execution so handlers are testable without
// real binaries.
type Runner interface {
	// Detect reports whether the binary at path is runnable.
	Detect(path string) bool

	// Start launches the binary and returns its stdout and a wait
	// function that reaps the process.
	Start(ctx context.Context, path string, args []string) (io.ReadCloser, func() error, error)
}

// execRunner is the os/exec-backed Runner.
type execRunner struct{}

func (execRunner) Detect(path string) bool {
	return exec.Command(path, "--version").Run() == nil
}

func (execRunner) Start(ctx context.Context, path string, args []string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return stdout, cmd.Wait, nil
}

// =============================================================================
// SERVER
// =============================================================================

// Server is the local CLI proxy.
type Server struct {
	port    int
	router  *http.ServeMux
	server  *http.Server
	runner  Runner
	configs map[claude.CliType]CliConfig

	mu         sync.RWMutex
	currentCli claude.CliType
}

// NewServer creates a proxy server. If port is 0 the default (3002) is
// used. The initial CLI comes from CLI_TYPE, defaulting to claude.
func NewServer(port int) *Server {
	if port == 0 {
		port = DefaultPort
	}

	current := claude.CliType(os.Getenv("CLI_TYPE"))
	configs := defaultCliConfigs()
	if _, ok := configs[current]; !ok {
		current = claude.CliClaude
	}

	s := &Server{
		port:       port,
		router:     http.NewServeMux(),
		runner:     execRunner{},
		configs:    configs,
		currentCli: current,
	}
	s.setupRoutes()
	return s
}

// WithRunner sets a custom CLI runner.
func (s *Server) WithRunner(r Runner) *Server {
	s.runner = r
	return s
}

// Port returns the listen port.
func (s *Server) Port() int {
	return s.port
}

// CurrentCli returns the currently selected CLI.
func (s *Server) CurrentCli() claude.CliType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCli
}

// currentConfig returns the selected CLI's configuration.
func (s *Server) currentConfig() (claude.CliType, CliConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCli, s.configs[s.currentCli]
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /doctor", s.handleHealth)
	s.router.HandleFunc("GET /cli", s.handleGetCli)
	s.router.HandleFunc("POST /cli", s.handleSetCli)
	s.router.HandleFunc("POST /agent", s.handleAgent)
}

// Handler returns the full middleware-wrapped handler, exported for
// tests.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		CORSMiddleware(),
		LoggingMiddleware(log.Default()),
		RateLimitMiddleware(NewIPRateLimiter(DefaultRateLimit, DefaultRateBurst)),
	)(s.router)
}

// =============================================================================
// SERVER LIFECYCLE
// =============================================================================

// Start runs the HTTP server until Shutdown or listen failure. The proxy
// binds 127.0.0.1 only; it relays to a CLI with local side effects.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: /agent streams for as long as the CLI runs.
		IdleTimeout: 120 * time.Second,
	}

	cli, config := s.currentConfig()
	log.Printf("PROXY_START | addr=%s version=%s cli=%s path=%s", addr, Version, cli, config.Path)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Printf("PROXY_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// =============================================================================
// HEALTH / CLI SELECTION HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cli, config := s.currentConfig()

	available := map[claude.CliType]bool{}
	for cliType, cfg := range s.configs {
		available[cliType] = s.runner.Detect(cfg.Path)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    Version,
		"currentCli": cli,
		"cliPath":    config.Path,
		"availableClis": map[string]bool{
			"claude":    available[claude.CliClaude],
			"codebuddy": available[claude.CliCodeBuddy],
		},
	})
}

func (s *Server) handleGetCli(w http.ResponseWriter, r *http.Request) {
	cli, config := s.currentConfig()

	names := make([]string, 0, len(s.configs))
	for cliType := range s.configs {
		names = append(names, string(cliType))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"currentCli":    cli,
		"cliPath":       config.Path,
		"availableClis": names,
	})
}

func (s *Server) handleSetCli(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CliType claude.CliType `json:"cliType"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	config, ok := s.configs[body.CliType]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid CLI type: %s. Available: claude, codebuddy", body.CliType))
		return
	}
	if !s.runner.Detect(config.Path) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("CLI '%s' is not available at path: %s", body.CliType, config.Path))
		return
	}

	s.mu.Lock()
	s.currentCli = body.CliType
	s.mu.Unlock()

	log.Printf("PROXY_CLI_SWITCH | cli=%s", body.CliType)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"currentCli": body.CliType,
		"cliPath":    config.Path,
	})
}

// =============================================================================
// AGENT HANDLER
// =============================================================================

// AgentRequest is the body of POST /agent.
type AgentRequest struct {
	Prompt       string         `json:"prompt"`
	Model        string         `json:"model,omitempty"`
	OutputFormat string         `json:"outputFormat,omitempty"`
	SessionID    string         `json:"sessionId,omitempty"`
	Continue     bool           `json:"continue,omitempty"`
	AddDir       []string       `json:"addDir,omitempty"`
	CliType      claude.CliType `json:"cliType,omitempty"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.OutputFormat == "" {
		req.OutputFormat = "stream-json"
	}

	// Per-request CLI override, falling back to the selected CLI.
	cli, config := s.currentConfig()
	if override, ok := s.configs[req.CliType]; ok && req.CliType != "" {
		cli, config = req.CliType, override
	}

	args := buildArgs(config, req)
	log.Printf("PROXY_AGENT | cli=%s format=%s", cli, req.OutputFormat)

	stdout, wait, err := s.runner.Start(r.Context(), config.Path, args)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.OutputFormat == "stream-json" {
		s.streamResponse(w, stdout, wait)
	} else {
		s.bufferedResponse(w, stdout, wait)
	}
}

// buildArgs assembles the CLI argv for one agent request.
func buildArgs(config CliConfig, req AgentRequest) []string {
	args := []string{"-p", req.Prompt, config.SkipPermissions, "--output-format", req.OutputFormat}

	// Incremental updates require partial-message frames.
	if req.OutputFormat == "stream-json" {
		args = append(args, "--include-partial-messages")
		if config.RequiresVerbose {
			args = append(args, "--verbose")
		}
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.Continue {
		args = append(args, "--continue")
	} else if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	}
	for _, dir := range req.AddDir {
		args = append(args, "--add-dir", dir)
	}
	return args
}

// streamResponse converts CLI stdout lines into an SSE stream.
func (s *Server) streamResponse(w http.ResponseWriter, stdout io.ReadCloser, wait func() error) {
	defer stdout.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintf(w, "event: next\ndata: %s\n\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := wait(); err != nil {
		log.Printf("PROXY_AGENT | process exit: %v", err)
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// bufferedResponse collects the CLI's single JSON result and rewrites it
// into the proxy's { output, usage } shape.
func (s *Server) bufferedResponse(w http.ResponseWriter, stdout io.ReadCloser, wait func() error) {
	defer stdout.Close()

	data, readErr := io.ReadAll(stdout)
	waitErr := wait()
	if readErr != nil {
		writeError(w, http.StatusInternalServerError, readErr.Error())
		return
	}
	if waitErr != nil && len(data) == 0 {
		writeError(w, http.StatusInternalServerError, waitErr.Error())
		return
	}

	output := strings.TrimSpace(string(data))
	response := map[string]interface{}{"output": output}

	// The CLI's json format emits a result envelope; surface its text and
	// usage when it parses.
	var env stream.Envelope
	if err := json.Unmarshal([]byte(output), &env); err == nil && env.Type == stream.FrameResult {
		response["output"] = env.Result
		if env.Usage != nil {
			response["usage"] = map[string]int{
				"inputTokens":  env.Usage.InputTokens,
				"outputTokens": env.Usage.OutputTokens,
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeBody parses a JSON request body with a size cap.
func decodeBody(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("PROXY_WRITE | encode failed: %v", err)
	}
}

// writeError writes the proxy's error body shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
