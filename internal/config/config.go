// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for codepod.
//
// Configuration lives in TOML at ~/.codepod/config.toml, with sensible
// defaults, environment variable overrides, and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete codepod configuration.
type Config struct {
	// Version of the config schema.
	Version string `toml:"version"`

	// DefaultModel is the model requested when a session doesn't pick one.
	DefaultModel string `toml:"default_model"`

	// DefaultCli selects which CLI backs sends: "claude" or "codebuddy".
	DefaultCli string `toml:"default_cli"`

	Transport TransportConfig `toml:"transport"`
	Proxy     ProxyConfig     `toml:"proxy"`
	Session   SessionConfig   `toml:"session"`
	Usage     UsageConfig     `toml:"usage"`
	UI        UIConfig        `toml:"ui"`
}

// TransportConfig controls how the bridge reaches the CLI.
type TransportConfig struct {
	// Prefer forces a transport: "auto" (IPC first, HTTP fallback),
	// "ipc", or "http".
	Prefer string `toml:"prefer"`

	// ProxyURL is the HTTP transport's base URL.
	ProxyURL string `toml:"proxy_url"`

	// ProbeTimeoutSecs bounds each transport availability probe.
	ProbeTimeoutSecs int `toml:"probe_timeout_secs"`
}

// ProxyConfig configures the built-in proxy server.
type ProxyConfig struct {
	// Port is the listen port for `codepod serve`.
	Port int `toml:"port"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	// Dir overrides the session directory (empty = ~/.codepod/sessions).
	Dir string `toml:"dir"`

	// MaxSessions caps stored sessions; oldest are pruned past it.
	MaxSessions int `toml:"max_sessions"`

	// AutosaveDebounceMs is the delay between a transcript change and
	// its write to disk.
	AutosaveDebounceMs int `toml:"autosave_debounce_ms"`
}

// UsageConfig configures token/cost accounting.
type UsageConfig struct {
	// Enabled turns usage recording on or off.
	Enabled bool `toml:"enabled"`

	// DBPath overrides the usage database path (empty = ~/.codepod/usage.db).
	DBPath string `toml:"db_path"`

	// MaxRecords caps stored usage records.
	MaxRecords int `toml:"max_records"`
}

// UIConfig contains TUI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowCost displays cost information in the UI
	ShowCost bool `toml:"show_cost"`
	// ShowTokens displays token counts in the UI
	ShowTokens bool `toml:"show_tokens"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: "claude-4.5",
		DefaultCli:   "claude",

		Transport: TransportConfig{
			Prefer:           "auto",
			ProxyURL:         "http://127.0.0.1:3002",
			ProbeTimeoutSecs: 3,
		},

		Proxy: ProxyConfig{
			Port: 3002,
		},

		Session: SessionConfig{
			MaxSessions:        100,
			AutosaveDebounceMs: 500,
		},

		Usage: UsageConfig{
			Enabled:    true,
			MaxRecords: 1000,
		},

		UI: UIConfig{
			Theme:      "dark",
			ShowCost:   true,
			ShowTokens: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the codepod configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".codepod"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from ~/.codepod/config.toml, falling back to
// defaults when the file doesn't exist. Environment overrides apply last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with
// defaults filled, environment overrides, and validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.DefaultCli == "" {
		c.DefaultCli = defaults.DefaultCli
	}

	if c.Transport.Prefer == "" {
		c.Transport.Prefer = defaults.Transport.Prefer
	}
	if c.Transport.ProxyURL == "" {
		c.Transport.ProxyURL = defaults.Transport.ProxyURL
	}
	if c.Transport.ProbeTimeoutSecs == 0 {
		c.Transport.ProbeTimeoutSecs = defaults.Transport.ProbeTimeoutSecs
	}

	if c.Proxy.Port == 0 {
		c.Proxy.Port = defaults.Proxy.Port
	}

	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = defaults.Session.MaxSessions
	}
	if c.Session.AutosaveDebounceMs == 0 {
		c.Session.AutosaveDebounceMs = defaults.Session.AutosaveDebounceMs
	}

	if c.Usage.MaxRecords == 0 {
		c.Usage.MaxRecords = defaults.Usage.MaxRecords
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with owner-only
// permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# codepod configuration file")
	fmt.Fprintln(file, "# Generated by codepod - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validClis := map[string]bool{"claude": true, "codebuddy": true}
	if !validClis[strings.ToLower(c.DefaultCli)] {
		errs = append(errs, ValidationError{
			Field:   "default_cli",
			Message: fmt.Sprintf("invalid CLI '%s', must be one of: claude, codebuddy", c.DefaultCli),
		})
	}

	validPrefer := map[string]bool{"auto": true, "ipc": true, "http": true}
	if !validPrefer[strings.ToLower(c.Transport.Prefer)] {
		errs = append(errs, ValidationError{
			Field:   "transport.prefer",
			Message: fmt.Sprintf("invalid transport '%s', must be one of: auto, ipc, http", c.Transport.Prefer),
		})
	}

	if c.Transport.ProxyURL != "" {
		if _, err := url.Parse(c.Transport.ProxyURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "transport.proxy_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if c.Transport.ProbeTimeoutSecs < 1 || c.Transport.ProbeTimeoutSecs > 60 {
		errs = append(errs, ValidationError{
			Field:   "transport.probe_timeout_secs",
			Message: fmt.Sprintf("must be 1-60, got %d", c.Transport.ProbeTimeoutSecs),
		})
	}

	if c.Proxy.Port < 1 || c.Proxy.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "proxy.port",
			Message: fmt.Sprintf("must be 1-65535, got %d", c.Proxy.Port),
		})
	}

	if c.Session.MaxSessions < 1 {
		errs = append(errs, ValidationError{
			Field:   "session.max_sessions",
			Message: "must be positive",
		})
	}

	if c.Session.AutosaveDebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "session.autosave_debounce_ms",
			Message: "must be non-negative",
		})
	}

	if c.Usage.MaxRecords < 1 || c.Usage.MaxRecords > 100000 {
		errs = append(errs, ValidationError{
			Field:   "usage.max_records",
			Message: fmt.Sprintf("must be 1-100000, got %d", c.Usage.MaxRecords),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CODEPOD_MODEL: overrides default_model
//   - CODEPOD_CLI: overrides default_cli
//   - CODEPOD_PROXY_URL: overrides transport.proxy_url
//   - CODEPOD_PROXY_PORT: overrides proxy.port
//   - CODEPOD_TRANSPORT: overrides transport.prefer
//   - CODEPOD_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("CODEPOD_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if cli := os.Getenv("CODEPOD_CLI"); cli != "" {
		c.DefaultCli = cli
	}
	if proxyURL := os.Getenv("CODEPOD_PROXY_URL"); proxyURL != "" {
		c.Transport.ProxyURL = proxyURL
	}
	if port := os.Getenv("CODEPOD_PROXY_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Proxy.Port = n
		}
	}
	if transport := os.Getenv("CODEPOD_TRANSPORT"); transport != "" {
		c.Transport.Prefer = transport
	}
	if theme := os.Getenv("CODEPOD_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by its dot-notation key, as used
// by `codepod config get`.
func (c *Config) Get(key string) (interface{}, error) {
	switch strings.ToLower(key) {
	case "version":
		return c.Version, nil
	case "default_model":
		return c.DefaultModel, nil
	case "default_cli":
		return c.DefaultCli, nil
	case "transport.prefer":
		return c.Transport.Prefer, nil
	case "transport.proxy_url":
		return c.Transport.ProxyURL, nil
	case "transport.probe_timeout_secs":
		return c.Transport.ProbeTimeoutSecs, nil
	case "proxy.port":
		return c.Proxy.Port, nil
	case "session.dir":
		return c.Session.Dir, nil
	case "session.max_sessions":
		return c.Session.MaxSessions, nil
	case "session.autosave_debounce_ms":
		return c.Session.AutosaveDebounceMs, nil
	case "usage.enabled":
		return c.Usage.Enabled, nil
	case "usage.db_path":
		return c.Usage.DBPath, nil
	case "usage.max_records":
		return c.Usage.MaxRecords, nil
	case "ui.theme":
		return c.UI.Theme, nil
	case "ui.show_cost":
		return c.UI.ShowCost, nil
	case "ui.show_tokens":
		return c.UI.ShowTokens, nil
	case "ui.compact_mode":
		return c.UI.CompactMode, nil
	default:
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
}

// Set sets a configuration value by its dot-notation key from its string
// form, as used by `codepod config set`.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "default_model":
		c.DefaultModel = value
	case "default_cli":
		c.DefaultCli = value
	case "transport.prefer":
		c.Transport.Prefer = value
	case "transport.proxy_url":
		c.Transport.ProxyURL = value
	case "transport.probe_timeout_secs":
		return setInt(&c.Transport.ProbeTimeoutSecs, key, value)
	case "proxy.port":
		return setInt(&c.Proxy.Port, key, value)
	case "session.dir":
		c.Session.Dir = value
	case "session.max_sessions":
		return setInt(&c.Session.MaxSessions, key, value)
	case "session.autosave_debounce_ms":
		return setInt(&c.Session.AutosaveDebounceMs, key, value)
	case "usage.enabled":
		c.Usage.Enabled = isTrue(value)
	case "usage.db_path":
		c.Usage.DBPath = value
	case "usage.max_records":
		return setInt(&c.Usage.MaxRecords, key, value)
	case "ui.theme":
		c.UI.Theme = value
	case "ui.show_cost":
		c.UI.ShowCost = isTrue(value)
	case "ui.show_tokens":
		c.UI.ShowTokens = isTrue(value)
	case "ui.compact_mode":
		c.UI.CompactMode = isTrue(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Keys returns all settable configuration keys in dot notation.
func Keys() []string {
	return []string{
		"default_model",
		"default_cli",
		"transport.prefer",
		"transport.proxy_url",
		"transport.probe_timeout_secs",
		"proxy.port",
		"session.dir",
		"session.max_sessions",
		"session.autosave_debounce_ms",
		"usage.enabled",
		"usage.db_path",
		"usage.max_records",
		"ui.theme",
		"ui.show_cost",
		"ui.show_tokens",
		"ui.compact_mode",
	}
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer value %q", key, value)
	}
	*dst = n
	return nil
}

func isTrue(value string) bool {
	return value == "1" || strings.EqualFold(value, "true") || strings.EqualFold(value, "yes")
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
