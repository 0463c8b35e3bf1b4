package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// FailurePrefix marks a task output that records a failure.
const FailurePrefix = "[Task failed]"

// WorkerResult is the single output a worker produces for its task.
type WorkerResult struct {
	TaskID     string
	Output     string
	Failed     bool
	Iterations int
	ToolCalls  int
}

// Worker executes one task with tool calling enabled.
type Worker struct {
	deps Deps
}

// NewWorker creates a worker.
func NewWorker(deps Deps) *Worker {
	return &Worker{deps: deps}
}

// Run executes task and always returns a populated result. Model errors,
// tool errors, and an exhausted tool loop become failure text rather than
// errors so a single task cannot abort its siblings.
func (w *Worker) Run(ctx context.Context, task models.Task, deps models.AgentOutputs, threadID string, hooks Hooks) WorkerResult {
	logger := w.deps.logger("worker").With().
		Str("task_id", task.ID).
		Str("thread_id", threadID).
		Logger()

	hint := llm.SelectHint(task)
	model, err := w.deps.Models.For(hint)
	if err != nil {
		logger.Warn().Err(err).Msg("no model for task")
		return failed(task.ID, err)
	}
	logger.Debug().Str("model", model.Name()).Str("hint", string(hint)).Msg("worker starting")

	loop := &toolLoop{
		model:         model,
		tools:         w.deps.Tools,
		maxIterations: w.deps.maxIterations(),
		hooks:         hooks,
		logger:        logger,
	}
	res, err := loop.run(ctx, llm.Request{
		System:   WorkerPrompt(task, deps),
		Messages: []llm.Message{llm.UserMessage("Begin your work.")},
	})
	if err != nil {
		logger.Warn().Err(err).Int("iterations", res.Iterations).Msg("task failed")
		out := failed(task.ID, err)
		out.Iterations = res.Iterations
		out.ToolCalls = res.ToolCalls
		return out
	}

	logger.Debug().
		Int("iterations", res.Iterations).
		Int("tool_calls", res.ToolCalls).
		Bool("exhausted", res.Exhausted).
		Msg("worker finished")
	return WorkerResult{
		TaskID:     task.ID,
		Output:     res.Output,
		Iterations: res.Iterations,
		ToolCalls:  res.ToolCalls,
	}
}

func failed(taskID string, err error) WorkerResult {
	return WorkerResult{
		TaskID: taskID,
		Output: fmt.Sprintf("%s Unable to complete the assigned task. Reason: %v", FailurePrefix, err),
		Failed: true,
	}
}

// IsFailure reports whether an output records a failed task.
func IsFailure(output string) bool {
	return strings.HasPrefix(output, FailurePrefix)
}
