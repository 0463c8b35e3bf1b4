// Package llmtest provides scripted llm.Model fakes for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ShayCichocki/switchyard/internal/llm"
)

// RespondFunc produces the response for the n-th call (zero based).
type RespondFunc func(ctx context.Context, req llm.Request, n int) (*llm.Response, error)

// Model is a concurrency-safe fake that records every request.
type Model struct {
	name    string
	respond RespondFunc

	mu       sync.Mutex
	requests []llm.Request
}

// New returns a fake model driven by fn.
func New(name string, fn RespondFunc) *Model {
	return &Model{name: name, respond: fn}
}

// Reply returns a fake that always answers with text.
func Reply(text string) *Model {
	return New("fake", func(context.Context, llm.Request, int) (*llm.Response, error) {
		return Text(text), nil
	})
}

// Fail returns a fake whose every call fails with err.
func Fail(err error) *Model {
	return New("fake", func(context.Context, llm.Request, int) (*llm.Response, error) {
		return nil, err
	})
}

// Sequence returns a fake that replays resps in order and repeats the last
// one once exhausted.
func Sequence(resps ...*llm.Response) *Model {
	return New("fake", func(_ context.Context, _ llm.Request, n int) (*llm.Response, error) {
		if n >= len(resps) {
			n = len(resps) - 1
		}
		return resps[n], nil
	})
}

// Text builds a final text response.
func Text(s string) *llm.Response {
	return &llm.Response{
		Content:    s,
		StopReason: llm.StopEndTurn,
		Usage:      llm.Usage{InputTokens: 10, OutputTokens: int64(len(strings.Fields(s)))},
	}
}

// ToolUse builds a response requesting the given tool calls.
func ToolUse(content string, calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{Content: content, ToolCalls: calls, StopReason: llm.StopToolUse}
}

// Name returns the fake's name.
func (m *Model) Name() string {
	return m.name
}

// Invoke records req and returns the scripted response. Text content is
// streamed word by word when req.OnToken is set.
func (m *Model) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	resp, err := m.respond(ctx, req, n)
	if err != nil {
		return nil, err
	}
	if req.OnToken != nil && resp.Content != "" {
		words := strings.SplitAfter(resp.Content, " ")
		for _, w := range words {
			req.OnToken(w)
		}
	}
	return resp, nil
}

// Calls returns the number of recorded requests.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *Model) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *Model) LastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}
	}
	return m.requests[len(m.requests)-1]
}
