package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesTemplateOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != DefaultStorage {
		t.Errorf("Storage = %q, want %q", cfg.Storage, DefaultStorage)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected template to be written: %v", err)
	}

	// The template itself must parse to the defaults.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load template: %v", err)
	}
	if again.Validation.ThresholdHours != DefaultThresholdHours {
		t.Errorf("ThresholdHours = %v, want %v", again.Validation.ThresholdHours, DefaultThresholdHours)
	}
	if again.Graph.ClientID != DefaultClientID {
		t.Errorf("ClientID = %q, want %q", again.Graph.ClientID, DefaultClientID)
	}
	if again.Server.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", again.Server.Addr, DefaultAddr)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `// comment line
{
  // another comment
  "storage": "sqlite",
  "validation": {"threshold_hours": 6.5, "bonus_keywords": ["oncall"]},
  "jira": {"base_url": "https://example.atlassian.net", "email": "ops@example.com", "api_token": "t"}
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage != "sqlite" {
		t.Errorf("Storage = %q, want sqlite", cfg.Storage)
	}
	if cfg.Validation.ThresholdHours != 6.5 {
		t.Errorf("ThresholdHours = %v, want 6.5", cfg.Validation.ThresholdHours)
	}
	if len(cfg.Validation.BonusKeywords) != 1 || cfg.Validation.BonusKeywords[0] != "oncall" {
		t.Errorf("BonusKeywords = %v", cfg.Validation.BonusKeywords)
	}
	if cfg.Jira.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", cfg.Jira.MaxConcurrency, DefaultMaxConcurrency)
	}
	if !cfg.JiraEnabled() {
		t.Error("expected Jira to be enabled")
	}
	if cfg.GraphEnabled() {
		t.Error("expected Graph to be disabled without a team ID")
	}
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"jira": {"api_token": "from-file"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envJiraToken, "from-env")
	t.Setenv(envGraphSecret, "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jira.APIToken != "from-env" {
		t.Errorf("APIToken = %q, want from-env", cfg.Jira.APIToken)
	}
	if cfg.Graph.ClientSecret != "secret" {
		t.Errorf("ClientSecret = %q, want secret", cfg.Graph.ClientSecret)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"bad json":     `{"storage": }`,
		"bad storage":  `{"storage": "mongo"}`,
		"bad timezone": `{"timezone": "Mars/Olympus"}`,
	}
	for name, content := range tests {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestStripLineComments(t *testing.T) {
	in := []byte("// header\n{\n   // indented\n  \"a\": \"http://x\"\n}\n")
	var v map[string]string
	if err := json.Unmarshal(stripLineComments(in), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v["a"] != "http://x" {
		t.Errorf("a = %q, want %q (inline // must survive)", v["a"], "http://x")
	}
}

func TestResolveDataDir(t *testing.T) {
	cfg := Default()
	got, err := cfg.ResolveDataDir(func() (string, error) { return "/default", nil })
	if err != nil || got != "/default" {
		t.Errorf("ResolveDataDir = %q, %v", got, err)
	}
	cfg.DataDir = "/custom"
	got, _ = cfg.ResolveDataDir(func() (string, error) { return "/default", nil })
	if got != "/custom" {
		t.Errorf("ResolveDataDir = %q, want /custom", got)
	}
}
