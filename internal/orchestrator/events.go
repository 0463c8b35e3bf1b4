package orchestrator

import "time"

// EventType represents the type of event emitted during a run.
type EventType string

const (
	// EventRunStarted is emitted first on every call, before any phase.
	EventRunStarted EventType = "run_started"
	// EventPhaseStarted is emitted when a phase begins.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseCompleted is emitted when a phase finishes with its output.
	EventPhaseCompleted EventType = "phase_completed"
	// EventTaskStarted is emitted when a worker picks up a task.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted is emitted when a worker records a task output.
	EventTaskCompleted EventType = "task_completed"
	// EventToolStarted is emitted before a tool call runs.
	EventToolStarted EventType = "tool_started"
	// EventToolCompleted is emitted after a tool call returns.
	EventToolCompleted EventType = "tool_completed"
	// EventToken carries one streamed model text fragment.
	EventToken EventType = "token"
	// EventSuspended is emitted when the run stops to wait for a human.
	EventSuspended EventType = "suspended"
	// EventRunCompleted is emitted last when the run reaches a terminal state.
	EventRunCompleted EventType = "run_completed"
)

// Display names for phases. They are what a consumer sees.
const (
	RunName             = "AI"
	PhaseNameClassifier = "Classifier"
	PhaseNameSupervisor = "Supervisor"
	PhaseNameSynthesize = "Synthesizer"
	PhaseNameRefiner    = "Refiner"
	PhaseNameApproval   = "Approval"
)

// WorkerName returns the display name for the worker running taskID.
func WorkerName(taskID string) string {
	return "Worker:" + taskID
}

// Event represents something that happened during a run.
type Event struct {
	Type     EventType
	ThreadID string
	// Name is the phase or worker display name. For tool events it is the
	// tool name.
	Name string
	// Source is the phase or worker that owns a tool or token event.
	Source string
	TaskID string
	// Content is the token fragment, tool output, or suspension prompt.
	Content string
	// Output is the result of a completed phase, task, or run.
	Output string
	Failed bool
	// Stuck lists unreachable task IDs when the Synthesizer starts after a deadlock.
	Stuck     []string
	Timestamp time.Time
}

// Sink receives events in emission order. A returned error stops the run.
type Sink func(Event) error
