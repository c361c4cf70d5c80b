// Package config loads taskfleet settings from flags, environment, .env and
// the .taskfleet.yaml file into an AppConfig.
package config

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	Workspace string          `mapstructure:"workspace" validate:"required"`
	Tasks     string          `mapstructure:"tasks" validate:"required"`
	Engine    EngineConfig    `mapstructure:"engine" validate:"required"`
	Strategy  StrategyConfig  `mapstructure:"strategy" validate:"required"`
	Launcher  LauncherConfig  `mapstructure:"launcher" validate:"required"`
	Dashboard DashboardConfig `mapstructure:"dashboard" validate:"required"`
	Report    ReportConfig    `mapstructure:"report" validate:"required"`
	History   HistoryConfig   `mapstructure:"history"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// EngineConfig selects and tunes the engine adapter used by `run`.
type EngineConfig struct {
	Name    string        `mapstructure:"name" validate:"required,oneof=claude-cli chat ollama"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
	// Binary and Args configure the claude-cli adapter.
	Binary string   `mapstructure:"binary" validate:"required"`
	Args   []string `mapstructure:"args"`
}

// StrategyConfig configures in-process execution.
type StrategyConfig struct {
	Name        string        `mapstructure:"name" validate:"required,oneof=parallel batch dag"`
	MaxParallel int           `mapstructure:"maxParallel" validate:"min=1,max=256"`
	BatchSize   int           `mapstructure:"batchSize" validate:"min=1"`
	Delay       time.Duration `mapstructure:"delay" validate:"min=0"`
}

// LauncherConfig controls detached worker launches.
type LauncherConfig struct {
	// Terminal forces a flavor (tmux, gnome-terminal, iterm, wt, ...). Empty means detect.
	Terminal    string        `mapstructure:"terminal"`
	BatchSize   int           `mapstructure:"batchSize" validate:"min=1"`
	LaunchDelay time.Duration `mapstructure:"launchDelay" validate:"min=0"`
	BatchPause  time.Duration `mapstructure:"batchPause" validate:"min=0"`
	// Backend is the command each worker runs against its prompt file.
	Backend string `mapstructure:"backend" validate:"required"`
}

// DashboardConfig tunes the progress dashboard and the reconciler behind it.
type DashboardConfig struct {
	Refresh  time.Duration `mapstructure:"refresh" validate:"min=0"`
	Liveness time.Duration `mapstructure:"liveness" validate:"min=0"`
}

// ReportConfig configures aggregation output.
type ReportConfig struct {
	Path        string        `mapstructure:"path"`
	LockTimeout time.Duration `mapstructure:"lockTimeout" validate:"min=0"`
}

// HistoryConfig locates the run ledger. Empty path means <workspace>/history.db.
type HistoryConfig struct {
	Path     string `mapstructure:"path"`
	Disabled bool   `mapstructure:"disabled"`
}

// LLMConfig holds configuration for the chat and ollama engines.
type LLMConfig struct {
	Provider  string            `mapstructure:"provider" validate:"omitempty,oneof=openai anthropic gemini ollama"`
	Model     string            `mapstructure:"model"`
	BaseURL   string            `mapstructure:"baseURL" validate:"omitempty,url"`
	APIKeys   map[string]string `mapstructure:"apiKeys"`
	MaxTokens int               `mapstructure:"maxTokens" validate:"omitempty,min=1"`
	System    string            `mapstructure:"system"`
}
