package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ShayCichocki/switchyard/internal/version"
)

// BuiltinServerName names the in-process tool server.
const BuiltinServerName = "builtin"

// now is replaced in tests.
var now = time.Now

// NewBuiltinServer returns an MCP server exposing the in-process tools.
func NewBuiltinServer() *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(BuiltinServerName, version.Get(), mcpserver.WithToolCapabilities(false))
	s.AddTools(currentTimeTool(), wordCountTool())
	return s
}

// ConnectBuiltin connects an in-process client to the built-in tool server.
func ConnectBuiltin(ctx context.Context) (*MCPSource, error) {
	client, err := mcpclient.NewInProcessClient(NewBuiltinServer())
	if err != nil {
		return nil, fmt.Errorf("create builtin tool client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("start builtin tool client: %w", err)
	}
	return ConnectClient(ctx, BuiltinServerName, client)
}

func currentTimeTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("current_time",
		mcplib.WithDescription("Get the current date and time in an IANA time zone"),
		mcplib.WithString("zone",
			mcplib.Description("IANA time zone name, e.g. Europe/Berlin. Defaults to UTC."),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: handleCurrentTime}
}

func handleCurrentTime(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	zone := req.GetString("zone", "UTC")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("unknown time zone", err), nil
	}
	return mcplib.NewToolResultText(now().In(loc).Format(time.RFC3339)), nil
}

func wordCountTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("word_count",
		mcplib.WithDescription("Count the words in a piece of text"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The text to count"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: handleWordCount}
}

func handleWordCount(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	text, err := req.RequireString("text")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("%d", len(strings.Fields(text)))), nil
}
