package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpprotocol "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/version"
)

// Transport names accepted in server configs.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable_http"
)

// ServerConfig describes one MCP server to load tools from.
type ServerConfig struct {
	Name      string            `mapstructure:"name" yaml:"name"`
	Transport string            `mapstructure:"transport" yaml:"transport"`
	Command   string            `mapstructure:"command" yaml:"command,omitempty"`
	Args      []string          `mapstructure:"args" yaml:"args,omitempty"`
	Env       map[string]string `mapstructure:"env" yaml:"env,omitempty"`
	URL       string            `mapstructure:"url" yaml:"url,omitempty"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// Validate checks that the config names a usable transport.
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return errors.New("mcp server: name is required")
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcp server %s: command is required for stdio", c.Name)
		}
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("mcp server %s: url is required for %s", c.Name, c.Transport)
		}
	default:
		return fmt.Errorf("mcp server %s: unsupported transport %q", c.Name, c.Transport)
	}
	return nil
}

// MCPSource is a connected MCP server and the tools it exposes.
type MCPSource struct {
	name   string
	client mcpclient.MCPClient
	tools  []Tool
}

// Connect opens a client for cfg, performs the handshake, and lists tools.
func Connect(ctx context.Context, cfg ServerConfig) (*MCPSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, needsStart, err := createClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create mcp client %s: %w", cfg.Name, err)
	}
	if needsStart {
		if s, ok := client.(interface{ Start(context.Context) error }); ok {
			if err := s.Start(ctx); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("start mcp client %s: %w", cfg.Name, err)
			}
		}
	}
	return ConnectClient(ctx, cfg.Name, client)
}

// ConnectClient initializes an already-created client and lists its tools.
// The client is closed on failure.
func ConnectClient(ctx context.Context, name string, client mcpclient.MCPClient) (*MCPSource, error) {
	initReq := mcpprotocol.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpprotocol.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpprotocol.Implementation{
		Name:    "switchyard",
		Version: version.Get(),
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("initialize mcp server %s: %w", name, err)
	}

	listed, err := client.ListTools(ctx, mcpprotocol.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("list tools on mcp server %s: %w", name, err)
	}

	src := &MCPSource{name: name, client: client}
	for i := range listed.Tools {
		src.tools = append(src.tools, &mcpTool{client: client, server: name, tool: listed.Tools[i]})
	}
	return src, nil
}

func createClient(cfg ServerConfig) (mcpclient.MCPClient, bool, error) {
	switch cfg.Transport {
	case TransportStdio:
		c, err := mcpclient.NewStdioMCPClient(cfg.Command, envMapToSlice(cfg.Env), cfg.Args...)
		return c, false, err

	case TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		c, err := mcpclient.NewSSEMCPClient(cfg.URL, opts...)
		return c, true, err

	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err := mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
		return c, false, err

	default:
		return nil, false, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

// envMapToSlice converts a map to the KEY=VALUE slice format expected by exec.Cmd.
func envMapToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// Name returns the server name.
func (s *MCPSource) Name() string { return s.name }

// Tools returns the tools exposed by the server.
func (s *MCPSource) Tools() []Tool { return s.tools }

// Close closes the underlying client.
func (s *MCPSource) Close() error { return s.client.Close() }

type mcpTool struct {
	client mcpclient.MCPClient
	server string
	tool   mcpprotocol.Tool
}

func (t *mcpTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.tool.Name,
		Description: t.tool.Description,
		Properties:  t.tool.InputSchema.Properties,
		Required:    t.tool.InputSchema.Required,
	}
}

func (t *mcpTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var arguments map[string]any
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", t.tool.Name, err)
		}
	}

	req := mcpprotocol.CallToolRequest{}
	req.Params.Name = t.tool.Name
	req.Params.Arguments = arguments

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp tool %s/%s failed: %w", t.server, t.tool.Name, err)
	}
	content := formatContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("mcp tool %s/%s error: %s", t.server, t.tool.Name, content)
	}
	return content, nil
}

func formatContent(items []mcpprotocol.Content) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch c := item.(type) {
		case mcpprotocol.TextContent:
			parts = append(parts, c.Text)
		case *mcpprotocol.TextContent:
			parts = append(parts, c.Text)
		default:
			data, err := json.Marshal(item)
			if err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Load connects every configured server plus the built-in tools and returns
// a registry over all of them. Servers that fail to connect are logged and
// skipped so one bad server does not block startup.
func Load(ctx context.Context, servers []ServerConfig, logger zerolog.Logger) (*Registry, error) {
	logger = logger.With().Str("component", "tools").Logger()

	r := &Registry{tools: make(map[string]Tool)}
	sources := make([]*MCPSource, 0, len(servers)+1)

	builtin, err := ConnectBuiltin(ctx)
	if err != nil {
		return nil, err
	}
	sources = append(sources, builtin)

	for _, cfg := range servers {
		src, err := Connect(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("server", cfg.Name).Msg("skipping mcp server")
			continue
		}
		sources = append(sources, src)
	}

	for _, src := range sources {
		r.closers = append(r.closers, src)
		for _, t := range src.Tools() {
			if err := r.add(t); err != nil {
				logger.Warn().Err(err).Str("server", src.Name()).Msg("skipping tool")
			}
		}
		logger.Info().Str("server", src.Name()).Int("tools", len(src.Tools())).Msg("mcp server connected")
	}
	return r, nil
}
