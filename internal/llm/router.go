package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/switchyard/pkg/models"
)

// Keywords that indicate a task should use the reasoning model.
var reasoningKeywords = []string{
	"analyze",
	"analyse",
	"architecture",
	"compare",
	"design",
	"evaluate",
	"prove",
	"complex",
}

// SelectHint chooses the model hint for a task. An explicit valid hint from
// the planner wins; otherwise the role and instruction are scanned for
// keywords that indicate a reasoning-heavy task.
func SelectHint(task models.Task) models.ModelHint {
	if task.ModelHint.Valid() {
		return task.ModelHint
	}
	text := strings.ToLower(task.Role + " " + task.Instruction)
	for _, kw := range reasoningKeywords {
		if strings.Contains(text, kw) {
			return models.ModelHintReasoning
		}
	}
	return models.ModelHintDefault
}

// Router maps model hints to model implementations. It is built once at
// startup and read concurrently afterwards.
type Router struct {
	mu     sync.RWMutex
	models map[models.ModelHint]Model
}

// NewRouter creates a router whose default hint resolves to def.
func NewRouter(def Model) *Router {
	r := &Router{models: make(map[models.ModelHint]Model)}
	if def != nil {
		r.models[models.ModelHintDefault] = def
	}
	return r
}

// Register binds a hint to a model.
func (r *Router) Register(hint models.ModelHint, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[hint] = m
}

// For returns the model for hint, falling back to the default model.
func (r *Router) For(hint models.ModelHint) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[hint.OrDefault()]; ok {
		return m, nil
	}
	if m, ok := r.models[models.ModelHintDefault]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: hint %q", ErrNoProvider, hint)
}

// Default returns the default model.
func (r *Router) Default() (Model, error) {
	return r.For(models.ModelHintDefault)
}

// WithTimeout wraps a model so every call runs under its own deadline.
// A zero or negative d returns m unchanged.
func WithTimeout(m Model, d time.Duration) Model {
	if d <= 0 {
		return m
	}
	return &timeoutModel{Model: m, timeout: d}
}

type timeoutModel struct {
	Model
	timeout time.Duration
}

func (m *timeoutModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.Model.Invoke(ctx, req)
}
