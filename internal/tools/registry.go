// Package tools provides the tool registry handed to workers. The registry
// is built once at startup and shared read-only by every run.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ShayCichocki/switchyard/internal/llm"
)

// ErrToolNotFound is returned when a model asks for a tool the registry lacks.
var ErrToolNotFound = errors.New("tool not found")

// Tool is one callable tool.
type Tool interface {
	Spec() llm.ToolSpec
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the tools available to workers.
type Registry struct {
	order   []string
	tools   map[string]Tool
	closers []io.Closer
}

// NewRegistry builds a registry from tools. Duplicate names are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(t Tool) error {
	name := t.Spec().Name
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool %q", name)
	}
	r.order = append(r.order, name)
	r.tools[name] = t
	return nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Specs returns the tool bindings to pass to a model.
func (r *Registry) Specs() []llm.ToolSpec {
	if r == nil {
		return nil
	}
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Call runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t.Call(ctx, args)
}

// Close releases any connections backing the tools.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	spec llm.ToolSpec
	fn   func(ctx context.Context, args json.RawMessage) (string, error)
}

// Func creates a Tool from a spec and a handler.
func Func(spec llm.ToolSpec, fn func(ctx context.Context, args json.RawMessage) (string, error)) *FuncTool {
	return &FuncTool{spec: spec, fn: fn}
}

// Spec returns the tool's binding.
func (f *FuncTool) Spec() llm.ToolSpec { return f.spec }

// Call invokes the handler.
func (f *FuncTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return f.fn(ctx, args)
}
