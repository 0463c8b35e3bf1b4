package llm

import (
	"context"
	"sync"
)

// TokenTracker tracks token usage across model calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from a model call.
func (t *TokenTracker) Add(u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += u.InputTokens
	t.outputTok += u.OutputTokens
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of model calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}

type trackerKey struct{}

// ContextWithTracker returns a context whose tracked model calls are also
// added to t. It scopes usage to one run.
func ContextWithTracker(ctx context.Context, t *TokenTracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker attached by ContextWithTracker, or nil.
func TrackerFromContext(ctx context.Context) *TokenTracker {
	t, _ := ctx.Value(trackerKey{}).(*TokenTracker)
	return t
}

// Tracked wraps a model so every successful call is added to global (when
// non-nil) and to the tracker carried by the call's context.
func Tracked(m Model, global *TokenTracker) Model {
	return &trackedModel{Model: m, global: global}
}

type trackedModel struct {
	Model
	global *TokenTracker
}

func (m *trackedModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	resp, err := m.Model.Invoke(ctx, req)
	if err != nil || resp == nil {
		return resp, err
	}
	if m.global != nil {
		m.global.Add(resp.Usage)
	}
	if t := TrackerFromContext(ctx); t != nil {
		t.Add(resp.Usage)
	}
	return resp, nil
}
