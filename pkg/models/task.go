package models

// ModelHint selects which model implementation a worker runs a task on.
type ModelHint string

const (
	// ModelHintDefault is the general-purpose model used for most text work.
	ModelHintDefault ModelHint = "default"
	// ModelHintReasoning is the long-context model used for deeper analysis.
	ModelHintReasoning ModelHint = "reasoning"
)

// Valid returns true if the hint is a known value.
func (h ModelHint) Valid() bool {
	switch h {
	case ModelHintDefault, ModelHintReasoning:
		return true
	default:
		return false
	}
}

// OrDefault returns the hint, or ModelHintDefault when it is empty or unknown.
func (h ModelHint) OrDefault() ModelHint {
	if h.Valid() {
		return h
	}
	return ModelHintDefault
}

// FallbackTaskID is the ID of the single task substituted when planning fails.
const FallbackTaskID = "fallback"

// FallbackRole is the role assigned to the fallback task.
const FallbackRole = "GeneralAssistant"

// Task is one unit of decomposed work. Tasks are created by the planner
// and are read-only afterwards.
type Task struct {
	// ID is unique within one request.
	ID string `json:"id"`
	// Role is the expert persona the worker adopts (e.g. "WebResearcher").
	Role string `json:"role"`
	// Instruction is the work assigned to the task.
	Instruction string `json:"instruction"`
	// Dependencies lists task IDs whose outputs must exist before this task runs.
	Dependencies []string `json:"dependencies"`
	// ModelHint picks the model the worker uses.
	ModelHint ModelHint `json:"model_hint"`
}

// Ready returns true if every dependency has a recorded output.
func (t Task) Ready(outputs AgentOutputs) bool {
	for _, dep := range t.Dependencies {
		if !outputs.Has(dep) {
			return false
		}
	}
	return true
}

// TaskGraph is the set of tasks for one request, in planner order.
type TaskGraph []Task

// IDs returns the task IDs in graph order.
func (g TaskGraph) IDs() []string {
	ids := make([]string, len(g))
	for i, t := range g {
		ids[i] = t.ID
	}
	return ids
}

// Get returns the task with the given ID.
func (g TaskGraph) Get(id string) (Task, bool) {
	for _, t := range g {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Clone returns a deep copy of the graph.
func (g TaskGraph) Clone() TaskGraph {
	if g == nil {
		return nil
	}
	out := make(TaskGraph, len(g))
	for i, t := range g {
		t.Dependencies = append([]string(nil), t.Dependencies...)
		out[i] = t
	}
	return out
}
