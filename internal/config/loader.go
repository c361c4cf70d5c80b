package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = ".taskfleet"
	envPrefix  = "TASKFLEET"
)

// New returns a viper instance with env handling and defaults applied.
// Each process builds its own instance; nothing here touches viper's global.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)                          // e.g., TASKFLEET_WORKSPACE
	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // TASKFLEET_STRATEGY_MAXPARALLEL
	SetDefaults(v)
	return v
}

// SetDefaults registers every default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace", ".taskfleet")
	v.SetDefault("tasks", "TASKS.md")

	v.SetDefault("engine.name", "claude-cli")
	v.SetDefault("engine.timeout", 30*time.Minute)
	v.SetDefault("engine.binary", "claude")
	v.SetDefault("engine.args", []string{"-p", "--dangerously-skip-permissions"})

	v.SetDefault("strategy.name", "dag")
	v.SetDefault("strategy.maxParallel", 4)
	v.SetDefault("strategy.batchSize", 5)
	v.SetDefault("strategy.delay", 30*time.Second)

	v.SetDefault("launcher.terminal", "")
	v.SetDefault("launcher.batchSize", 5)
	v.SetDefault("launcher.launchDelay", 2*time.Second)
	v.SetDefault("launcher.batchPause", 30*time.Second)
	v.SetDefault("launcher.backend", "claude --dangerously-skip-permissions")

	v.SetDefault("dashboard.refresh", 5*time.Second)
	v.SetDefault("dashboard.liveness", 60*time.Second)

	v.SetDefault("report.path", "")
	v.SetDefault("report.lockTimeout", 10*time.Second)

	v.SetDefault("llm.maxTokens", 8192)
}

// Load reads .env, the config file and the environment into an AppConfig.
// configFile overrides the search in ./ and $HOME.
func Load(v *viper.Viper, configFile string) (*AppConfig, error) {
	// It's okay if .env doesn't exist.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("skipping .env", "error", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		slog.Debug("no config file found, using defaults and environment")
	} else {
		slog.Debug("using config file", "path", v.ConfigFileUsed())
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.resolvePaths()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation error: %w", err)
	}
	return &cfg, nil
}

func (c *AppConfig) resolvePaths() {
	if c.Report.Path == "" {
		c.Report.Path = filepath.Join(c.Workspace, "REPORT.md")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.Workspace, "history.db")
	}
}

// LogPath is the application log inside the workspace.
func (c *AppConfig) LogPath() string {
	return filepath.Join(c.Workspace, "logs", "taskfleet.log")
}

// CrashDir holds crash logs inside the workspace.
func (c *AppConfig) CrashDir() string {
	return filepath.Join(c.Workspace, "crash_logs")
}
