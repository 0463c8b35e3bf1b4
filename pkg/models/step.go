package models

// StepStatus is the lifecycle state of a timeline step.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
)

// StepKind is the kind of content a step displays.
type StepKind string

const (
	StepText       StepKind = "text"
	StepAttachment StepKind = "attachment"
)

// Step is the UI-facing projection of one phase, task, or tool call.
// It is rebuilt from the event stream and never stored in execution state.
type Step struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Content string     `json:"content"`
	Status  StepStatus `json:"status"`
	Kind    StepKind   `json:"kind"`
}
