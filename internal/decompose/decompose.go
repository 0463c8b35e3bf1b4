// Package decompose provides the planner that turns a user request into
// either a direct answer or a dependency graph of tasks.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchyard/internal/graph"
	"github.com/ShayCichocki/switchyard/internal/llm"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// PlanSummaryHeading prefixes the plan description shown for task plans.
const PlanSummaryHeading = "### Execution plan\n"

// FallbackResult is shown when planning failed and the fallback task runs.
const FallbackResult = "Planning ran into a problem, so a general assistant has been assigned to your request."

// PlanKind tags the shape of a PlanResult.
type PlanKind int

const (
	// PlanDirect means the planner answered directly and there are no tasks.
	PlanDirect PlanKind = iota
	// PlanTasks means the planner produced a valid task graph.
	PlanTasks
	// PlanFallback means planning failed and a single fallback task was substituted.
	PlanFallback
)

// String returns a human-readable representation of the plan kind.
func (k PlanKind) String() string {
	switch k {
	case PlanDirect:
		return "direct"
	case PlanTasks:
		return "tasks"
	case PlanFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// PlanResult is the planner's tagged output.
type PlanResult struct {
	Kind  PlanKind
	Tasks models.TaskGraph
	// Result is the direct answer, the plan summary, or the fallback notice.
	Result string
	// Err is the planning failure that caused a fallback.
	Err error
}

// plannedTask is the JSON structure returned by the model for a single task.
type plannedTask struct {
	ID           string   `json:"id"`
	Role         string   `json:"role"`
	Instruction  string   `json:"instruction"`
	Task         string   `json:"task"`
	Dependencies []string `json:"dependencies"`
	ModelHint    string   `json:"model_hint"`
}

type planResponse struct {
	Tasks           []plannedTask `json:"tasks"`
	PlanDescription string        `json:"plan_description"`
}

// Planner breaks requests down into tasks.
type Planner struct {
	models *llm.Router
	logger zerolog.Logger
}

// New creates a new Planner.
func New(router *llm.Router, logger zerolog.Logger) *Planner {
	return &Planner{
		models: router,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// Plan asks the model for a plan. It never returns an error: model failures,
// unparseable output, and invalid graphs all produce PlanFallback.
func (p *Planner) Plan(ctx context.Context, msgs []models.Message, onToken func(string)) PlanResult {
	model, err := p.models.Default()
	if err != nil {
		return p.fallback(msgs, err)
	}

	resp, err := model.Invoke(ctx, llm.Request{
		System:   plannerPrompt,
		Messages: []llm.Message{llm.UserMessage("User request:\n" + models.RenderMessages(msgs))},
		JSON:     true,
		OnToken:  onToken,
	})
	if err != nil {
		return p.fallback(msgs, fmt.Errorf("planner call failed: %w", err))
	}

	tasks, description, err := ParseResponse(resp.Content)
	if err != nil {
		return p.fallback(msgs, err)
	}

	if len(tasks) == 0 {
		p.logger.Debug().Msg("planner answered directly")
		return PlanResult{Kind: PlanDirect, Tasks: models.TaskGraph{}, Result: description}
	}

	p.logger.Info().Int("tasks", len(tasks)).Msg("plan created")
	return PlanResult{Kind: PlanTasks, Tasks: tasks, Result: PlanSummaryHeading + description}
}

func (p *Planner) fallback(msgs []models.Message, cause error) PlanResult {
	p.logger.Warn().Err(cause).Msg("planning failed, substituting fallback task")
	return PlanResult{
		Kind:   PlanFallback,
		Tasks:  models.TaskGraph{FallbackTask(msgs)},
		Result: FallbackResult,
		Err:    cause,
	}
}

// FallbackTask is the single task substituted when planning fails. Its
// instruction is the original request.
func FallbackTask(msgs []models.Message) models.Task {
	instruction := models.LastText(msgs)
	if instruction == "" {
		instruction = models.RenderMessages(msgs)
	}
	return models.Task{
		ID:           models.FallbackTaskID,
		Role:         models.FallbackRole,
		Instruction:  instruction,
		Dependencies: []string{},
	}
}

// ParseResponse parses the model's JSON plan into tasks and a description.
// The returned graph has passed validation.
func ParseResponse(response string) (models.TaskGraph, string, error) {
	var plan planResponse
	if err := llm.DecodeJSON(response, &plan); err != nil {
		preview := response
		if len(preview) > 500 {
			cut := 500
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut] + "... (truncated)"
		}
		return nil, "", fmt.Errorf("no valid plan found in response (got %d chars): %q: %w", len(response), preview, err)
	}

	description := strings.TrimSpace(plan.PlanDescription)
	if len(plan.Tasks) == 0 {
		if description == "" {
			return nil, "", errors.New("plan has neither tasks nor an answer")
		}
		return models.TaskGraph{}, description, nil
	}

	tasks := make(models.TaskGraph, 0, len(plan.Tasks))
	for _, pt := range plan.Tasks {
		t, err := pt.toTask()
		if err != nil {
			return nil, "", err
		}
		tasks = append(tasks, t)
	}

	if err := graph.Validate(tasks); err != nil {
		return nil, "", fmt.Errorf("validate dependencies: %w", err)
	}
	return tasks, description, nil
}

func (pt plannedTask) toTask() (models.Task, error) {
	id := strings.TrimSpace(pt.ID)
	instruction := strings.TrimSpace(pt.Instruction)
	if instruction == "" {
		instruction = strings.TrimSpace(pt.Task)
	}
	if instruction == "" {
		return models.Task{}, fmt.Errorf("task %q has no instruction", id)
	}

	role := strings.TrimSpace(pt.Role)
	if role == "" {
		role = models.FallbackRole
	}

	hint := models.ModelHint(strings.ToLower(strings.TrimSpace(pt.ModelHint)))
	if !hint.Valid() {
		hint = ""
	}

	deps := make([]string, 0, len(pt.Dependencies))
	for _, d := range pt.Dependencies {
		deps = append(deps, strings.TrimSpace(d))
	}

	return models.Task{
		ID:           id,
		Role:         role,
		Instruction:  instruction,
		Dependencies: deps,
		ModelHint:    hint,
	}, nil
}
