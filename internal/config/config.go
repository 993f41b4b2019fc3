package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for shiftcheck, stored in ~/.shiftcheck/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	// DataDir holds snapshots and tokens. Empty = ~/.shiftcheck.
	DataDir string `json:"data_dir"`
	// Storage selects the snapshot backend: "file" or "sqlite".
	Storage string `json:"storage"`
	// Timezone is the IANA timezone used to decide "today". Empty = local time.
	Timezone   string           `json:"timezone"`
	Validation ValidationConfig `json:"validation"`
	Graph      GraphConfig      `json:"graph"`
	Jira       JiraConfig       `json:"jira"`
	Server     ServerConfig     `json:"server"`
	Log        LogConfig        `json:"log"`
}

// ValidationConfig tunes the reconciliation policy.
type ValidationConfig struct {
	ThresholdHours   float64  `json:"threshold_hours"`
	IncludeUnmatched bool     `json:"include_unmatched"`
	StandardKeywords []string `json:"standard_keywords"`
	BonusKeywords    []string `json:"bonus_keywords"`
}

// GraphConfig holds Microsoft Graph / Teams Shifts settings.
type GraphConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for multi-tenant device login.
	TenantID string `json:"tenant_id"`
	// ClientID is the Azure app (client) ID.
	ClientID string `json:"client_id"`
	// ClientSecret enables the client-credentials flow. Empty = device code flow.
	ClientSecret string `json:"client_secret"`
	// TeamID is the team whose schedule is read.
	TeamID string `json:"team_id"`
	// ActsAs is sent as MS-APP-ACTS-AS for application access to Shifts.
	ActsAs string `json:"acts_as"`
}

// JiraConfig holds Jira Cloud settings.
type JiraConfig struct {
	BaseURL        string `json:"base_url"`
	Email          string `json:"email"`
	APIToken       string `json:"api_token"`
	MaxConcurrency int    `json:"max_concurrency"`
}

// ServerConfig configures `shiftcheck serve`.
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

const (
	// DefaultTenantID is the Microsoft "common" tenant.
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	// DefaultThresholdHours is the logged time a shift day needs to count as worked.
	DefaultThresholdHours = 7.0
	// DefaultMaxConcurrency bounds parallel Jira project fetches.
	DefaultMaxConcurrency = 4
	DefaultAddr           = ":8080"
	DefaultStorage        = "file"
	DefaultLogLevel       = "info"

	envGraphSecret = "SHIFTCHECK_GRAPH_CLIENT_SECRET"
	envJiraToken   = "SHIFTCHECK_JIRA_API_TOKEN"
)

// Default returns a Config pre-filled with sensible defaults.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// shiftcheck configuration – ~/.shiftcheck/config.json
//
// Secrets may also be supplied via SHIFTCHECK_GRAPH_CLIENT_SECRET and
// SHIFTCHECK_JIRA_API_TOKEN, which take precedence over this file.
{
  // Where snapshots and tokens live. Empty = ~/.shiftcheck
  "data_dir": "",

  // Snapshot backend: "file" (one JSON file per week) or "sqlite".
  "storage": "file",

  // IANA timezone used to decide which week is "this week". Empty = local time.
  "timezone": "",

  // ── Reconciliation ──────────────────────────────────────────────────────
  "validation": {
    // Logged hours needed on a shift's day for the shift to count as worked.
    "threshold_hours": 7,
    // Keep shifts outside the keyword set in results (validated=false).
    "include_unmatched": false,
    // Leave empty to use the built-in keyword sets.
    "standard_keywords": [],
    "bonus_keywords": []
  },

  // ── Microsoft Graph / Teams Shifts ──────────────────────────────────────
  "graph": {
    "tenant_id": "common",
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",
    // Set a secret to use the client-credentials flow; otherwise device code login is used.
    "client_secret": "",
    "team_id": "",
    // User principal sent as MS-APP-ACTS-AS with application permissions.
    "acts_as": ""
  },

  // ── Jira Cloud worklogs ─────────────────────────────────────────────────
  "jira": {
    "base_url": "",
    "email": "",
    "api_token": "",
    "max_concurrency": 4
  },

  // ── HTTP API (shiftcheck serve) ─────────────────────────────────────────
  "server": {
    "addr": ":8080",
    "allowed_origins": []
  },

  "log": {
    // debug, info, warn or error
    "level": "info",
    "development": false
  }
}
`

// FilePath returns the path to ~/.shiftcheck/config.json.
func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".shiftcheck", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads the config at path (the default location when empty), creating
// it with annotated defaults on first run.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := FilePath()
		if err != nil {
			return Default(), err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	cleaned := stripLineComments(data)
	var cfg Config
	if err := json.Unmarshal(cleaned, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Default(), fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields with built-in defaults so callers
// always get a usable Config even if the user only partially fills in the file.
func (c *Config) applyDefaults() {
	if c.Storage == "" {
		c.Storage = DefaultStorage
	}
	if c.Validation.ThresholdHours <= 0 {
		c.Validation.ThresholdHours = DefaultThresholdHours
	}
	if c.Graph.TenantID == "" {
		c.Graph.TenantID = DefaultTenantID
	}
	if c.Graph.ClientID == "" {
		c.Graph.ClientID = DefaultClientID
	}
	if c.Jira.MaxConcurrency <= 0 {
		c.Jira.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envGraphSecret); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv(envJiraToken); v != "" {
		c.Jira.APIToken = v
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage must be \"file\" or \"sqlite\", got %q", c.Storage)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location returns the configured timezone, falling back to local time.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ResolveDataDir returns DataDir or the default ~/.shiftcheck.
func (c Config) ResolveDataDir(defaultDir func() (string, error)) (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	return defaultDir()
}

// GraphEnabled reports whether a Teams schedule can be fetched.
func (c Config) GraphEnabled() bool {
	return c.Graph.TeamID != ""
}

// JiraEnabled reports whether Jira worklogs can be fetched.
func (c Config) JiraEnabled() bool {
	return c.Jira.BaseURL != "" && c.Jira.Email != "" && c.Jira.APIToken != ""
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
