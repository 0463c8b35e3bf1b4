// Package llm defines the model capability used by every agent and the
// providers that implement it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoProvider is returned when no model is configured for a hint.
var ErrNoProvider = errors.New("no model provider configured")

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Stop reasons reported by providers.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Model is an opaque language model: it takes messages and optional tool
// bindings and returns text or tool call requests.
type Model interface {
	// Name returns the model identifier used for logging and metrics.
	Name() string
	// Invoke performs one model turn.
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Request is one model turn.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int64
	// JSON asks the provider for a JSON-only response where supported.
	JSON bool
	// OnToken, when set, receives text fragments as they are produced.
	OnToken func(fragment string)
}

// Message is one conversation turn. Assistant turns may carry tool calls;
// user turns may carry the results of those calls.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// UserMessage returns a user turn with plain text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolSpec describes a tool the model may call. Properties and Required
// form a JSON schema object for the arguments.
type ToolSpec struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// ToolCall is a model request to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the outcome of a tool call, fed back on the next turn.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Usage counts the tokens consumed by one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the result of one model turn.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// WantsTools reports whether the model asked for tool calls.
func (r *Response) WantsTools() bool {
	return r != nil && len(r.ToolCalls) > 0
}
