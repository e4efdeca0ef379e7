// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for courier.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation with clamping.
//
// File location: ~/.courier/config.toml
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/courier-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete courier configuration.
type Config struct {
	// BackendURL is the base URL of the assistant backend.
	BackendURL string `toml:"backend_url"`

	Chat      ChatConfig      `toml:"chat"`
	Poll      PollConfig      `toml:"poll"`
	UI        UIConfig        `toml:"ui"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ChatConfig contains per-message defaults.
type ChatConfig struct {
	// Provider is the default provider identifier sent with each message.
	Provider string `toml:"provider"`
	// Mood is an optional tone tag sent with each message.
	Mood string `toml:"mood"`
	// WebSearch enables backend web search by default.
	WebSearch bool `toml:"web_search"`
	// HistoryLimit is how many messages a history fetch requests (1-1000).
	HistoryLimit int `toml:"history_limit"`
}

// PollConfig controls the background refresh poller.
type PollConfig struct {
	// Enabled turns background refresh on.
	Enabled bool `toml:"enabled"`
	// IntervalSecs is the poll interval in seconds (1-300, clamped).
	IntervalSecs int `toml:"interval_secs"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowReasoning displays the reasoning side-channel while thinking.
	ShowReasoning bool `toml:"show_reasoning"`
	// CompactMode uses a more compact layout.
	CompactMode bool `toml:"compact_mode"`
}

// TelemetryConfig controls local stream telemetry.
type TelemetryConfig struct {
	// Enabled turns on local stream statistics recording.
	Enabled bool `toml:"enabled"`
	// DBPath overrides the statistics database location
	// (empty = ~/.courier/telemetry.db).
	DBPath string `toml:"db_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		BackendURL: "http://127.0.0.1:8765",

		Chat: ChatConfig{
			Provider:     "auto",
			Mood:         "",
			WebSearch:    false,
			HistoryLimit: 200,
		},

		Poll: PollConfig{
			Enabled:      true,
			IntervalSecs: 5,
		},

		UI: UIConfig{
			Theme:         "dark",
			ShowReasoning: true,
			CompactMode:   false,
		},

		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSecs) * time.Second
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the courier configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".courier"), nil
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
// LOAD AND SAVE
// =============================================================================

// Load reads the config file, falls back to defaults when absent, applies
// environment overrides, then normalizes and validates.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path. A missing
// file is not an error; defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default config file.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to a TOML file.
// RELIABILITY: atomic write with fsync prevents a torn config on crash.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# courier configuration file\n")
	buf.WriteString("# Generated by courier - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - COURIER_BACKEND_URL: overrides backend_url
//   - COURIER_PROVIDER: overrides chat.provider
//   - COURIER_WEB_SEARCH: "1"/"true" enables web search
//   - COURIER_NO_POLL: "1"/"true" disables background refresh
//   - COURIER_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("COURIER_BACKEND_URL"); u != "" {
		c.BackendURL = u
	}
	if p := os.Getenv("COURIER_PROVIDER"); p != "" {
		c.Chat.Provider = p
	}
	if w := os.Getenv("COURIER_WEB_SEARCH"); w != "" {
		c.Chat.WebSearch = isTruthy(w)
	}
	if n := os.Getenv("COURIER_NO_POLL"); n != "" {
		c.Poll.Enabled = !isTruthy(n)
	}
	if t := os.Getenv("COURIER_THEME"); t != "" {
		c.UI.Theme = t
	}
}

func isTruthy(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}

// =============================================================================
// NORMALIZATION AND VALIDATION
// =============================================================================

// SetDefaults fills missing values and clamps out-of-range numbers to
// their valid bounds.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.BackendURL == "" {
		c.BackendURL = defaults.BackendURL
	}
	if c.Chat.Provider == "" {
		c.Chat.Provider = defaults.Chat.Provider
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}

	// Clamp rather than reject: a hand-edited interval of 0 or 9999
	// should not brick startup.
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = defaults.Chat.HistoryLimit
	}
	if c.Chat.HistoryLimit > 1000 {
		c.Chat.HistoryLimit = 1000
	}
	if c.Poll.IntervalSecs <= 0 {
		c.Poll.IntervalSecs = defaults.Poll.IntervalSecs
	}
	if c.Poll.IntervalSecs > 300 {
		c.Poll.IntervalSecs = 300
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration after normalization.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.BackendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ValidationError{
			Field:   "backend_url",
			Message: fmt.Sprintf("invalid URL %q", c.BackendURL),
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationError{
			Field:   "backend_url",
			Message: fmt.Sprintf("scheme must be http or https, got %q", parsed.Scheme),
		}
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		return ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q, must be one of: dark, light, auto", c.UI.Theme),
		}
	}

	return nil
}
