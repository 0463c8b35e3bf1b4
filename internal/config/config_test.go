package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/switchyard/internal/tools"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Models.Default != ProviderAnthropic {
		t.Errorf("expected default provider %q, got %q", ProviderAnthropic, cfg.Models.Default)
	}
	if cfg.Orchestrator.MaxToolIterations != 5 {
		t.Errorf("expected max tool iterations 5, got %d", cfg.Orchestrator.MaxToolIterations)
	}
	if cfg.Orchestrator.MaxConcurrency != 0 {
		t.Errorf("expected unbounded concurrency, got %d", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Orchestrator.DeadlockPolicy != "synthesize" {
		t.Errorf("expected deadlock policy 'synthesize', got %q", cfg.Orchestrator.DeadlockPolicy)
	}
	if !cfg.Orchestrator.ApprovalEnabled || !cfg.Orchestrator.RefineEnabled {
		t.Error("expected approval and refinement to be enabled")
	}
	if cfg.Checkpoint.Driver != DriverSQLite {
		t.Errorf("expected sqlite checkpoints, got %q", cfg.Checkpoint.Driver)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr ':8080', got %q", cfg.Server.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("SWITCHYARD_ANTHROPIC_API_KEY", "")
	t.Setenv("MCP_TOKEN", "secret-token")

	path := writeConfig(t, `
anthropic:
  api_key: test-key
  model: claude-opus-4
  bedrock: true
  region: us-west-2
gemini:
  timeout: 10s
models:
  default: anthropic
  reasoning: gemini
orchestrator:
  max_concurrency: 3
  deadlock_policy: error
  approval_enabled: false
  model_call_timeout: 45s
checkpoint:
  driver: memory
server:
  addr: 127.0.0.1:9000
mcp:
  servers:
    - name: search
      transport: streamable_http
      url: http://localhost:3001/mcp
      headers:
        Authorization: Bearer ${MCP_TOKEN}
    - name: files
      transport: stdio
      command: mcp-files
      args: ["--root", "/srv"]
logging:
  level: debug
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if !cfg.Anthropic.Bedrock || cfg.Anthropic.Region != "us-west-2" {
		t.Errorf("expected bedrock in us-west-2, got %+v", cfg.Anthropic)
	}
	if cfg.Gemini.Timeout != 10*time.Second {
		t.Errorf("expected gemini timeout 10s, got %v", cfg.Gemini.Timeout)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("expected default gemini model, got %q", cfg.Gemini.Model)
	}
	if cfg.Models.Reasoning != ProviderGemini {
		t.Errorf("expected reasoning provider gemini, got %q", cfg.Models.Reasoning)
	}
	if cfg.Orchestrator.MaxConcurrency != 3 {
		t.Errorf("expected max_concurrency 3, got %d", cfg.Orchestrator.MaxConcurrency)
	}
	if cfg.Orchestrator.DeadlockPolicy != "error" {
		t.Errorf("expected deadlock policy 'error', got %q", cfg.Orchestrator.DeadlockPolicy)
	}
	if cfg.Orchestrator.ApprovalEnabled {
		t.Error("expected approval to be disabled")
	}
	if !cfg.Orchestrator.RefineEnabled {
		t.Error("expected refine to keep its default")
	}
	if cfg.Orchestrator.ModelCallTimeout != 45*time.Second {
		t.Errorf("expected model call timeout 45s, got %v", cfg.Orchestrator.ModelCallTimeout)
	}
	if cfg.Orchestrator.MaxToolIterations != 5 {
		t.Errorf("expected default tool iterations, got %d", cfg.Orchestrator.MaxToolIterations)
	}
	if cfg.Checkpoint.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %q", cfg.Checkpoint.Driver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging, got %q", cfg.Logging.Level)
	}

	if len(cfg.MCP.Servers) != 2 {
		t.Fatalf("expected 2 mcp servers, got %d", len(cfg.MCP.Servers))
	}
	search := cfg.MCP.Servers[0]
	if search.Transport != tools.TransportStreamableHTTP || search.URL != "http://localhost:3001/mcp" {
		t.Errorf("unexpected search server: %+v", search)
	}
	// viper lowercases map keys
	if got := search.Headers["authorization"]; got != "Bearer secret-token" {
		t.Errorf("expected expanded header, got %q", got)
	}
	files := cfg.MCP.Servers[1]
	if files.Command != "mcp-files" || len(files.Args) != 2 {
		t.Errorf("unexpected files server: %+v", files)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected config to validate: %v", err)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	t.Setenv("SWITCHYARD_ORCHESTRATOR_MAX_CONCURRENCY", "7")

	cfg, err := LoadFromPath(writeConfig(t, "anthropic:\n  api_key: from-file\n"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("expected env key to win, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Orchestrator.MaxConcurrency != 7 {
		t.Errorf("expected max_concurrency 7 from env, got %d", cfg.Orchestrator.MaxConcurrency)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if err := os.MkdirAll(filepath.Join(xdg, "switchyard"), 0755); err != nil {
		t.Fatal(err)
	}
	user := "server:\n  addr: :7000\nlogging:\n  level: warn\n"
	if err := os.WriteFile(filepath.Join(xdg, "switchyard", "config.yaml"), []byte(user), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ".switchyard.yaml"), []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(project)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("expected user addr ':7000', got %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected project level 'debug', got %q", cfg.Logging.Level)
	}
	if GetProjectConfigPath() == "" {
		t.Error("expected project config to be found")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.Models.Default = "openai" }, "models.default"},
		{"missing provider", func(c *Config) { c.Models.Default = "" }, "models.default is required"},
		{"unknown reasoning provider", func(c *Config) { c.Models.Reasoning = "llama" }, "models.reasoning"},
		{"bad deadlock policy", func(c *Config) { c.Orchestrator.DeadlockPolicy = "ignore" }, "deadlock_policy"},
		{"negative concurrency", func(c *Config) { c.Orchestrator.MaxConcurrency = -1 }, "max_concurrency"},
		{"bad driver", func(c *Config) { c.Checkpoint.Driver = "redis" }, "checkpoint.driver"},
		{"bad mcp server", func(c *Config) {
			c.MCP.Servers = []tools.ServerConfig{{Name: "x", Transport: "carrier-pigeon"}}
		}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/switchyard"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
	if GetUserConfigPath() != filepath.Join(expected, "config.yaml") {
		t.Errorf("unexpected user config path %q", GetUserConfigPath())
	}
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	changed := make(chan *Config, 4)
	cfg, err := Watch(path, func(c *Config, err error) {
		if err == nil {
			changed <- c
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected initial level 'info', got %q", cfg.Logging.Level)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Logging.Level == "error" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}
