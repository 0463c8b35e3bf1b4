package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/switchyard/internal/tools"
)

// ErrNoAPIKey is returned when a provider has no API key configured.
var ErrNoAPIKey = errors.New("no API key configured")

// keyEnv names the environment variable each provider reads directly.
var keyEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

func configuredKey(cfg *Config, provider string) string {
	if cfg == nil {
		return ""
	}
	switch provider {
	case ProviderAnthropic:
		return cfg.Anthropic.APIKey
	case ProviderGemini:
		return cfg.Gemini.APIKey
	default:
		return ""
	}
}

// GetAPIKey returns the API key for provider.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config, provider string) (string, error) {
	if env, ok := keyEnv[provider]; ok {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}

	if key := os.ExpandEnv(configuredKey(cfg, provider)); key != "" && !strings.HasPrefix(key, "${") {
		return key, nil
	}

	return "", fmt.Errorf("%w for %s", ErrNoAPIKey, provider)
}

// ValidateAPIKey performs basic format validation on a provider key.
// It does not contact the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case ProviderGemini:
		if strings.ContainsAny(key, " \t\n") {
			return errors.New("invalid API key format: contains whitespace")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the key for provider was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	if env, ok := keyEnv[provider]; ok && os.Getenv(env) != "" {
		return KeySourceEnv
	}

	if key := os.ExpandEnv(configuredKey(cfg, provider)); key != "" && !strings.HasPrefix(key, "${") {
		return KeySourceConfig
	}

	return KeySourceNone
}

// Redacted returns a copy of cfg with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Anthropic.APIKey = MaskAPIKey(c.Anthropic.APIKey)
	out.Gemini.APIKey = MaskAPIKey(c.Gemini.APIKey)
	out.MCP.Servers = make([]tools.ServerConfig, len(c.MCP.Servers))
	for i, s := range c.MCP.Servers {
		s.Env = maskValues(s.Env)
		s.Headers = maskValues(s.Headers)
		out.MCP.Servers[i] = s
	}
	return &out
}

func maskValues(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = MaskAPIKey(v)
	}
	return out
}
