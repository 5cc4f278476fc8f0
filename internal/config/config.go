package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Provider      ProviderConfig      `toml:"provider"`
	Engine        EngineConfig        `toml:"engine"`
	Orchestrator  OrchestratorConfig  `toml:"orchestrator"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	DatabasePath string `toml:"database_path"`
	PromptDir    string `toml:"prompt_dir"` // optional prompt template override directory
}

// ProviderConfig holds completion provider settings
type ProviderConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	FallbackAPIKey string `toml:"fallback_api_key"`
	TimeoutSecs    int    `toml:"timeout_secs"`
}

// Timeout returns the per-call completion timeout
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// EngineConfig holds execution-bridge settings for the editor process
type EngineConfig struct {
	BaseURL          string `toml:"base_url"`
	PollIntervalSecs int    `toml:"poll_interval_secs"`
	DeadlineSecs     int    `toml:"deadline_secs"`
}

// PollInterval returns the status poll interval
func (e EngineConfig) PollInterval() time.Duration {
	if e.PollIntervalSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(e.PollIntervalSecs) * time.Second
}

// Deadline returns the overall execute-and-wait deadline
func (e EngineConfig) Deadline() time.Duration {
	if e.DeadlineSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(e.DeadlineSecs) * time.Second
}

// OrchestratorConfig holds run-loop tuning knobs
type OrchestratorConfig struct {
	MaxDebugRetries    int `toml:"max_debug_retries"`    // debug-and-retry execution budget
	MaxTaskReasks      int `toml:"max_task_reasks"`      // re-ask budget when code is missing
	ReviewEveryNTasks  int `toml:"review_every_n_tasks"` // progress-review cadence
	SignalPollSecs     int `toml:"signal_poll_secs"`     // pause-checkpoint poll interval
	MaxConsultants     int `toml:"max_consultants"`
	ChatContextEntries int `toml:"chat_context_entries"`
}

// SignalPoll returns the pause-signal poll interval
func (o OrchestratorConfig) SignalPoll() time.Duration {
	if o.SignalPollSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(o.SignalPollSecs) * time.Second
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds web API settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			DatabasePath: filepath.Join(home, ".scene-crew", "scene-crew.db"),
		},
		Provider: ProviderConfig{
			BaseURL:     "https://api.anthropic.com/v1/messages",
			TimeoutSecs: 60,
		},
		Engine: EngineConfig{
			BaseURL:          "http://127.0.0.1:30010",
			PollIntervalSecs: 2,
			DeadlineSecs:     120,
		},
		Orchestrator: OrchestratorConfig{
			MaxDebugRetries:    3,
			MaxTaskReasks:      3,
			ReviewEveryNTasks:  2,
			SignalPollSecs:     2,
			MaxConsultants:     3,
			ChatContextEntries: 20,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.PromptDir = ExpandPath(cfg.General.PromptDir)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "scene-crew", "config.toml")
}
