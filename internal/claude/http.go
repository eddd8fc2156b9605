// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/codepod-dev/codepod/internal/stream"
)

// =============================================================================
// HTTP TRANSPORT CONFIGURATION
// =============================================================================

// HTTPConfig holds configuration for the HTTP proxy transport.
type HTTPConfig struct {
	// BaseURL is the proxy base URL (default: http://127.0.0.1:3002)
	// Note: explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows.
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration
}

// DefaultHTTPConfig returns the default proxy transport configuration.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		BaseURL: "http://127.0.0.1:3002",
		Timeout: 30 * time.Second,
	}
}

// =============================================================================
// HTTP TRANSPORT
// =============================================================================

// HTTPTransport reaches the CLI through the local proxy's SSE endpoint.
// It is safe for concurrent use.
type HTTPTransport struct {
	config     *HTTPConfig
	httpClient *http.Client

	mu         sync.Mutex
	currentCli CliType
	available  AvailableClis
}

// NewHTTPTransport creates an HTTP transport with default configuration.
func NewHTTPTransport() *HTTPTransport {
	return NewHTTPTransportWithConfig(DefaultHTTPConfig())
}

// NewHTTPTransportWithConfig creates an HTTP transport with custom configuration.
func NewHTTPTransportWithConfig(config *HTTPConfig) *HTTPTransport {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:3002"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPTransport{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name implements Transport.
func (t *HTTPTransport) Name() string {
	return "http"
}

// =============================================================================
// AVAILABILITY PROBE
// =============================================================================

// Probe checks GET /health. Besides reachability it records which CLI
// binaries the proxy detected, for status display and CLI switching.
func (t *HTTPTransport) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err == nil {
		t.mu.Lock()
		t.available = health.AvailableClis
		if health.CurrentCli != "" {
			t.currentCli = health.CurrentCli
		}
		t.mu.Unlock()
	}

	return true
}

// AvailableClis returns the CLI availability reported by the last
// successful probe.
func (t *HTTPTransport) AvailableClis() AvailableClis {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available
}

// CurrentCli returns the CLI the proxy currently targets.
func (t *HTTPTransport) CurrentCli() CliType {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentCli
}

// =============================================================================
// STREAMING SEND
// =============================================================================

// Send implements Transport. It POSTs the prompt to /agent requesting an
// SSE response and feeds the body through the shared frame parser,
// invoking onFrame for each complete frame.
func (t *HTTPTransport) Send(ctx context.Context, prompt string, opts Options, onFrame FrameFunc) error {
	request := agentRequest{
		Prompt:       prompt,
		Model:        opts.Model,
		OutputFormat: "stream-json",
		SessionID:    opts.SessionID,
		Continue:     opts.ContinueSession,
	}
	if opts.Cwd != "" {
		request.AddDir = []string{opts.Cwd}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/agent", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout for streaming; lifetime is bounded by the context.
	streamClient := &http.Client{}

	resp, err := streamClient.Do(req)
	if err != nil {
		if isCanceled(ctx, err) {
			return nil
		}
		return &ClientError{Type: ErrTypeConnection, Message: "agent request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return t.errorFromResponse(resp, "agent request failed")
	}

	return t.processStream(ctx, resp.Body, onFrame)
}

// processStream reads the SSE body incrementally through the shared parser.
func (t *HTTPTransport) processStream(ctx context.Context, body io.Reader, onFrame FrameFunc) error {
	parser := stream.NewParser()
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			// User-initiated stop: stop consuming bytes, success path.
			return nil
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range parser.Feed(string(buf[:n])) {
				onFrame(frame)
			}
		}
		if err != nil {
			if err == io.EOF || isCanceled(ctx, err) {
				return nil
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}
	}
}

// =============================================================================
// NON-STREAMING SEND
// =============================================================================

// SendOnce performs a single non-streaming request (outputFormat "json")
// and returns the complete output with usage when reported.
func (t *HTTPTransport) SendOnce(ctx context.Context, prompt string, opts Options) (*Completion, error) {
	request := agentRequest{
		Prompt:       prompt,
		Model:        opts.Model,
		OutputFormat: "json",
		SessionID:    opts.SessionID,
		Continue:     opts.ContinueSession,
	}
	if opts.Cwd != "" {
		request.AddDir = []string{opts.Cwd}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/agent", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "agent request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, t.errorFromResponse(resp, "agent request failed")
	}

	var result Completion
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// =============================================================================
// CLI SELECTION
// =============================================================================

// CliStatus queries which CLI binary the proxy targets.
func (t *HTTPTransport) CliStatus(ctx context.Context) (*CliStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.BaseURL+"/cli", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "cli status request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, t.errorFromResponse(resp, "cli status request failed")
	}

	var status CliStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &status, nil
}

// SetCli switches the proxy to a different CLI binary. The proxy answers
// 400 with an error body when the requested CLI is unavailable.
func (t *HTTPTransport) SetCli(ctx context.Context, cli CliType) error {
	body, err := json.Marshal(map[string]CliType{"cliType": cli})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/cli", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "cli switch request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return &ClientError{Type: ErrTypeCLIUnavailable, Message: e.Error}
		}
		return ErrCLIUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return t.errorFromResponse(resp, "cli switch request failed")
	}

	t.mu.Lock()
	t.currentCli = cli
	t.mu.Unlock()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// errorFromResponse builds a ClientError from a non-2xx response,
// preferring the proxy's error body over the bare status.
func (t *HTTPTransport) errorFromResponse(resp *http.Response, fallback string) error {
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: e.Error}
	}
	return &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: fallback + ": " + resp.Status,
	}
}

// isCanceled reports whether err (or the context itself) reflects a
// user-initiated cancellation.
func isCanceled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
