package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Timeout() != 60*time.Second {
		t.Errorf("default provider timeout = %v, want 60s", cfg.Provider.Timeout())
	}
	if cfg.Engine.PollInterval() != 2*time.Second {
		t.Errorf("default poll interval = %v, want 2s", cfg.Engine.PollInterval())
	}
	if cfg.Engine.Deadline() != 120*time.Second {
		t.Errorf("default deadline = %v, want 120s", cfg.Engine.Deadline())
	}
	if cfg.Orchestrator.MaxDebugRetries != 3 {
		t.Errorf("MaxDebugRetries = %d, want 3", cfg.Orchestrator.MaxDebugRetries)
	}
	if cfg.Orchestrator.MaxConsultants != 3 {
		t.Errorf("MaxConsultants = %d, want 3", cfg.Orchestrator.MaxConsultants)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[provider]
base_url = "http://localhost:9999/complete"
api_key = "primary"
fallback_api_key = "fallback"
timeout_secs = 45

[engine]
base_url = "http://localhost:30010"
deadline_secs = 30

[orchestrator]
max_debug_retries = 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.BaseURL != "http://localhost:9999/complete" {
		t.Errorf("BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.Timeout() != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.Provider.Timeout())
	}
	if cfg.Engine.Deadline() != 30*time.Second {
		t.Errorf("deadline = %v, want 30s", cfg.Engine.Deadline())
	}
	if cfg.Orchestrator.MaxDebugRetries != 5 {
		t.Errorf("MaxDebugRetries = %d, want 5", cfg.Orchestrator.MaxDebugRetries)
	}
	// Unset sections keep defaults
	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("ExpandPath left absolute path: %q", got)
	}
}
