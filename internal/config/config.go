// Package config handles configuration loading for Switchyard.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/switchyard/internal/tools"
)

// Provider names accepted in the models section.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Checkpoint drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for Switchyard.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic" yaml:"anthropic"`
	Gemini       GeminiConfig       `mapstructure:"gemini" yaml:"gemini"`
	Models       ModelsConfig       `mapstructure:"models" yaml:"models"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Checkpoint   CheckpointConfig   `mapstructure:"checkpoint" yaml:"checkpoint"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	MCP          MCPConfig          `mapstructure:"mcp" yaml:"mcp"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model" yaml:"model"`
	Bedrock   bool   `mapstructure:"bedrock" yaml:"bedrock"`
	Region    string `mapstructure:"region" yaml:"region,omitempty"`
	Profile   string `mapstructure:"profile" yaml:"profile,omitempty"`
	MaxTokens int64  `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Model    string        `mapstructure:"model" yaml:"model"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ModelsConfig maps model hints to providers.
type ModelsConfig struct {
	// Default serves every hint without its own entry.
	Default string `mapstructure:"default" yaml:"default"`
	// Reasoning serves tasks hinted "reasoning". Empty uses Default.
	Reasoning string `mapstructure:"reasoning" yaml:"reasoning,omitempty"`
}

// OrchestratorConfig holds run settings.
type OrchestratorConfig struct {
	MaxToolIterations int           `mapstructure:"max_tool_iterations" yaml:"max_tool_iterations"`
	MaxConcurrency    int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	DeadlockPolicy    string        `mapstructure:"deadlock_policy" yaml:"deadlock_policy"`
	ApprovalEnabled   bool          `mapstructure:"approval_enabled" yaml:"approval_enabled"`
	RefineEnabled     bool          `mapstructure:"refine_enabled" yaml:"refine_enabled"`
	ModelCallTimeout  time.Duration `mapstructure:"model_call_timeout" yaml:"model_call_timeout"`
}

// CheckpointConfig selects the checkpoint store.
type CheckpointConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the SQLite file. Empty uses the XDG data directory.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
	// Retention purges checkpoints not touched for this long. Zero keeps them.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	BodyLimit       int64         `mapstructure:"body_limit" yaml:"body_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MCPConfig lists external tool servers.
type MCPConfig struct {
	Servers []tools.ServerConfig `mapstructure:"servers" yaml:"servers"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File enables rotated JSON logs at this path.
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Validate checks values that would otherwise fail later at wiring time.
func (c *Config) Validate() error {
	var errs []error
	for _, p := range []struct{ key, val string }{
		{"models.default", c.Models.Default},
		{"models.reasoning", c.Models.Reasoning},
	} {
		switch p.val {
		case ProviderAnthropic, ProviderGemini:
		case "":
			if p.key == "models.default" {
				errs = append(errs, fmt.Errorf("%s is required", p.key))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", p.key, p.val))
		}
	}
	switch c.Orchestrator.DeadlockPolicy {
	case "", "synthesize", "error":
	default:
		errs = append(errs, fmt.Errorf("orchestrator.deadlock_policy: unknown policy %q", c.Orchestrator.DeadlockPolicy))
	}
	if c.Orchestrator.MaxConcurrency < 0 {
		errs = append(errs, errors.New("orchestrator.max_concurrency must not be negative"))
	}
	switch c.Checkpoint.Driver {
	case DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("checkpoint.driver: unknown driver %q", c.Checkpoint.Driver))
	}
	for _, s := range c.MCP.Servers {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GEMINI_API_KEY, SWITCHYARD_*)
// 2. Project config (.switchyard.yaml in current directory or parent)
// 3. User config (~/.config/switchyard/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	_, cfg, err := load("")
	return cfg, err
}

// LoadFromPath loads configuration from a specific file instead of the
// user and project locations. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	_, cfg, err := load(path)
	return cfg, err
}

func load(path string) (*viper.Viper, *Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(getUserConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, fmt.Errorf("reading user config: %w", err)
			}
		}

		if err := mergeProjectConfig(v); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWITCHYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "SWITCHYARD_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini.api_key", "SWITCHYARD_GEMINI_API_KEY", "GEMINI_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	for i := range cfg.MCP.Servers {
		for k, val := range cfg.MCP.Servers[i].Env {
			cfg.MCP.Servers[i].Env[k] = expandEnv(val)
		}
		for k, val := range cfg.MCP.Servers[i].Headers {
			cfg.MCP.Servers[i].Headers[k] = expandEnv(val)
		}
	}
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.bedrock", d.Anthropic.Bedrock)
	v.SetDefault("anthropic.region", d.Anthropic.Region)
	v.SetDefault("anthropic.profile", d.Anthropic.Profile)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)

	v.SetDefault("gemini.api_key", d.Gemini.APIKey)
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.endpoint", d.Gemini.Endpoint)
	v.SetDefault("gemini.timeout", d.Gemini.Timeout.String())

	v.SetDefault("models.default", d.Models.Default)
	v.SetDefault("models.reasoning", d.Models.Reasoning)

	v.SetDefault("orchestrator.max_tool_iterations", d.Orchestrator.MaxToolIterations)
	v.SetDefault("orchestrator.max_concurrency", d.Orchestrator.MaxConcurrency)
	v.SetDefault("orchestrator.deadlock_policy", d.Orchestrator.DeadlockPolicy)
	v.SetDefault("orchestrator.approval_enabled", d.Orchestrator.ApprovalEnabled)
	v.SetDefault("orchestrator.refine_enabled", d.Orchestrator.RefineEnabled)
	v.SetDefault("orchestrator.model_call_timeout", d.Orchestrator.ModelCallTimeout.String())

	v.SetDefault("checkpoint.driver", d.Checkpoint.Driver)
	v.SetDefault("checkpoint.path", d.Checkpoint.Path)
	v.SetDefault("checkpoint.retention", d.Checkpoint.Retention.String())

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
}

// getUserConfigDir returns the XDG config directory for Switchyard.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "switchyard")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "switchyard")
	}
	return filepath.Join(home, ".config", "switchyard")
}

// findProjectConfig searches for .switchyard.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".switchyard.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
		Gemini: GeminiConfig{
			Model:    "gemini-2.5-flash",
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/models",
			Timeout:  60 * time.Second,
		},
		Models: ModelsConfig{
			Default: ProviderAnthropic,
		},
		Orchestrator: OrchestratorConfig{
			MaxToolIterations: 5,
			MaxConcurrency:    0,
			DeadlockPolicy:    "synthesize",
			ApprovalEnabled:   true,
			RefineEnabled:     true,
			ModelCallTimeout:  2 * time.Minute,
		},
		Checkpoint: CheckpointConfig{
			Driver:    DriverSQLite,
			Retention: 7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			BodyLimit:       1 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
