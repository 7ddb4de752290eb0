package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Budget.MaxCalls != 100 {
		t.Errorf("default max_calls = %d, want 100", cfg.Budget.MaxCalls)
	}
	if cfg.Budget.WindowSeconds != 300 {
		t.Errorf("default window_seconds = %v, want 300", cfg.Budget.WindowSeconds)
	}
	if !cfg.Budget.EnableBackoff {
		t.Error("backoff should be enabled by default")
	}
	if cfg.Connection.TimeoutSeconds != 30 {
		t.Errorf("default timeout_seconds = %v, want 30", cfg.Connection.TimeoutSeconds)
	}
	if cfg.Analysis.Concurrency != 1 {
		t.Errorf("default concurrency = %d, want 1", cfg.Analysis.Concurrency)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("default format = %s, want json", cfg.Output.Format)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipecheck.yaml")
	content := `
connection:
  base_url: https://stream.example.com:9000
  auth_token: test-token
  product: edge
budget:
  max_calls: 50
  window_seconds: 120
analysis:
  objectives:
    - health
    - resource
  concurrency: 2
output:
  format: yaml
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Connection.BaseURL != "https://stream.example.com:9000" {
		t.Errorf("base_url = %s", cfg.Connection.BaseURL)
	}
	if cfg.Connection.Product != "edge" {
		t.Errorf("product = %s, want edge", cfg.Connection.Product)
	}
	if cfg.Budget.MaxCalls != 50 {
		t.Errorf("max_calls = %d, want 50", cfg.Budget.MaxCalls)
	}
	if len(cfg.Analysis.Objectives) != 2 || cfg.Analysis.Objectives[0] != "health" {
		t.Errorf("objectives = %v", cfg.Analysis.Objectives)
	}
	if cfg.Output.Format != "yaml" {
		t.Errorf("format = %s, want yaml", cfg.Output.Format)
	}

	// unset fields keep their defaults
	if cfg.Budget.BackoffMultiplier != 2.0 {
		t.Errorf("backoff_multiplier = %v, want default 2.0", cfg.Budget.BackoffMultiplier)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("PIPECHECK_CONNECTION_AUTH_TOKEN", "env-token")
	t.Setenv("PIPECHECK_BUDGET_MAX_CALLS", "25")

	dir := t.TempDir()
	path := filepath.Join(dir, "pipecheck.yaml")
	if err := os.WriteFile(path, []byte("connection:\n  base_url: https://x.example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Connection.AuthToken != "env-token" {
		t.Errorf("auth_token = %q, want env override", cfg.Connection.AuthToken)
	}
	if cfg.Budget.MaxCalls != 25 {
		t.Errorf("max_calls = %d, want env override 25", cfg.Budget.MaxCalls)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipecheck.yaml")
	if err := os.WriteFile(path, []byte("budget:\n  max_calls: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("zero max_calls should be rejected")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/pipecheck.yaml"); err == nil {
		t.Error("missing explicit config file should be an error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Connection.TimeoutSeconds = 0 }},
		{"bad product", func(c *Config) { c.Connection.Product = "firehose" }},
		{"zero max calls", func(c *Config) { c.Budget.MaxCalls = 0 }},
		{"zero window", func(c *Config) { c.Budget.WindowSeconds = 0 }},
		{"backoff cap below initial", func(c *Config) {
			c.Budget.InitialBackoffSeconds = 10
			c.Budget.MaxBackoffSeconds = 5
		}},
		{"multiplier below one", func(c *Config) { c.Budget.BackoffMultiplier = 0.5 }},
		{"zero concurrency", func(c *Config) { c.Analysis.Concurrency = 0 }},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConnectionConfig_RequestTimeout(t *testing.T) {
	c := ConnectionConfig{TimeoutSeconds: 2.5}
	if got := c.RequestTimeout(); got != 2500*time.Millisecond {
		t.Errorf("RequestTimeout() = %v, want 2.5s", got)
	}
}

func TestConnectionConfig_EffectiveDeploymentID(t *testing.T) {
	tests := []struct {
		name     string
		conn     ConnectionConfig
		expected string
	}{
		{"explicit id wins", ConnectionConfig{DeploymentID: "prod-east", BaseURL: "https://x.example.com"}, "prod-east"},
		{"host from https url", ConnectionConfig{BaseURL: "https://stream.example.com:9000"}, "stream.example.com"},
		{"host with path", ConnectionConfig{BaseURL: "http://edge.example.com/api"}, "edge.example.com"},
		{"empty", ConnectionConfig{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conn.EffectiveDeploymentID(); got != tt.expected {
				t.Errorf("EffectiveDeploymentID() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipecheck.yaml")

	cfg := DefaultConfig()
	cfg.Connection.BaseURL = "https://saved.example.com"
	cfg.Budget.MaxCalls = 42

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig after save failed: %v", err)
	}
	if loaded.Connection.BaseURL != cfg.Connection.BaseURL {
		t.Errorf("base_url = %s, want %s", loaded.Connection.BaseURL, cfg.Connection.BaseURL)
	}
	if loaded.Budget.MaxCalls != 42 {
		t.Errorf("max_calls = %d, want 42", loaded.Budget.MaxCalls)
	}
}

func TestFindDefaultConfig_EnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("output:\n  format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPECHECK_CONFIG", path)

	// Run from an empty directory so no local candidate interferes
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	found := findDefaultConfig()
	if !strings.HasSuffix(found, "custom.yaml") {
		t.Errorf("findDefaultConfig() = %q, want PIPECHECK_CONFIG fallback", found)
	}
}
