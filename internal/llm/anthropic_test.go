package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{"us.anthropic.custom-v1:0", "us.anthropic.custom-v1:0"},
		{"my-custom-model", "my-custom-model"},
	}
	for _, tt := range tests {
		if got := translateModelForBedrock(tt.in); got != tt.want {
			t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropic(context.Background(), AnthropicConfig{})
	assert.Error(t, err)
}

func TestAnthropicInvoke(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "tu_1", "name": "current_time", "input": {"zone": "UTC"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 5, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic(context.Background(), AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-test",
		BaseURL: srv.URL + "/",
	})
	require.NoError(t, err)

	resp, err := a.Invoke(context.Background(), Request{
		System:   "sys",
		Messages: []Message{UserMessage("what time is it")},
		Tools:    []ToolSpec{{Name: "current_time", Description: "time"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "let me check", resp.Content)
	assert.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"zone":"UTC"}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, Usage{InputTokens: 5, OutputTokens: 7}, resp.Usage)

	assert.Equal(t, "claude-test", body["model"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}
