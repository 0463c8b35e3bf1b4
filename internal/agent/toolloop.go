package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/internal/tools"
)

// DefaultMaxToolIterations is the number of model turns a tool loop may take.
const DefaultMaxToolIterations = 5

// ErrIterationsExhausted is returned when the loop hit its bound without
// producing any text.
var ErrIterationsExhausted = errors.New("tool loop reached its iteration bound without output")

// ToolError wraps a failed tool call.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// LoopResult summarizes one tool loop.
type LoopResult struct {
	Output     string
	Iterations int
	ToolCalls  int
	// Exhausted is set when the bound stopped the loop.
	Exhausted bool
}

// toolLoop drives a model through repeated tool calls.
type toolLoop struct {
	model         llm.Model
	tools         *tools.Registry
	maxIterations int
	hooks         Hooks
	logger        zerolog.Logger
}

// run invokes the model, executes any requested tools, and re-invokes the
// model with their results until it answers without tool calls or the
// iteration bound is reached. Tool calls from one turn run concurrently;
// their results are appended in request order before the next turn.
func (l *toolLoop) run(ctx context.Context, req llm.Request) (LoopResult, error) {
	var result LoopResult
	var partial []string

	req.Tools = l.tools.Specs()
	req.OnToken = l.hooks.OnToken
	messages := append([]llm.Message(nil), req.Messages...)

	for result.Iterations < l.maxIterations {
		result.Iterations++

		req.Messages = messages
		resp, err := l.model.Invoke(ctx, req)
		if err != nil {
			return result, fmt.Errorf("model call failed: %w", err)
		}
		if resp.Content != "" {
			partial = append(partial, resp.Content)
		}

		if !resp.WantsTools() {
			result.Output = resp.Content
			if result.Output == "" {
				result.Output = strings.Join(partial, "\n")
			}
			return result, nil
		}

		l.logger.Debug().
			Int("iteration", result.Iterations).
			Int("tool_calls", len(resp.ToolCalls)).
			Msg("model requested tools")

		if result.Iterations == l.maxIterations {
			break
		}

		toolResults, err := l.runTools(ctx, resp.ToolCalls)
		result.ToolCalls += len(resp.ToolCalls)
		if err != nil {
			return result, err
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: toolResults},
		)
	}

	result.Exhausted = true
	l.logger.Warn().Int("iterations", result.Iterations).Msg("tool loop reached iteration bound")
	result.Output = strings.Join(partial, "\n")
	if result.Output == "" {
		return result, ErrIterationsExhausted
	}
	return result, nil
}

func (l *toolLoop) runTools(ctx context.Context, calls []llm.ToolCall) ([]llm.ToolResult, error) {
	results := make([]llm.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			l.hooks.toolStart(call.Name)
			out, err := l.tools.Call(gctx, call.Name, call.Arguments)
			if err != nil {
				l.hooks.toolEnd(call.Name, "error: "+err.Error())
				return &ToolError{Tool: call.Name, Err: err}
			}
			l.hooks.toolEnd(call.Name, truncateForDisplay(out))
			results[i] = llm.ToolResult{CallID: call.ID, Name: call.Name, Content: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
