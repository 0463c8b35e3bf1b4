package orchestrator

import (
	"github.com/ShayCichocki/switchyard/internal/graph"
	"github.com/ShayCichocki/switchyard/pkg/models"
)

// DecisionKind says what the run does after a scheduling pass.
type DecisionKind int

const (
	// DecisionDispatch runs the assignments concurrently.
	DecisionDispatch DecisionKind = iota
	// DecisionSynthesize routes to the Synthesizer.
	DecisionSynthesize
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionDispatch:
		return "dispatch"
	case DecisionSynthesize:
		return "synthesize"
	default:
		return "unknown"
	}
}

// Reason explains a Decision.
type Reason string

const (
	ReasonReady       Reason = "ready"
	ReasonNoTasks     Reason = "no_tasks"
	ReasonAllComplete Reason = "all_complete"
	// ReasonDeadlock means tasks remain but none can become ready.
	ReasonDeadlock Reason = "deadlock"
)

// Assignment hands one task to a worker together with a read-only snapshot
// of the outputs recorded so far.
type Assignment struct {
	Task     models.Task
	Context  models.AgentOutputs
	ThreadID string
}

// Decision is the result of one scheduling pass.
type Decision struct {
	Kind        DecisionKind
	Reason      Reason
	Assignments []Assignment
	// Stuck lists the pending task IDs when Reason is ReasonDeadlock.
	Stuck []string
}

// Distribute selects the tasks that can run now. It reads its arguments
// only, so it is safe to call from any goroutine. Every ready task is
// returned in the same pass, in planner order, and all assignments share
// one snapshot of outputs.
func Distribute(tasks models.TaskGraph, outputs models.AgentOutputs, threadID string) Decision {
	if len(tasks) == 0 {
		return Decision{Kind: DecisionSynthesize, Reason: ReasonNoTasks}
	}

	pending := graph.Pending(tasks, outputs)
	if len(pending) == 0 {
		return Decision{Kind: DecisionSynthesize, Reason: ReasonAllComplete}
	}

	ready := graph.Ready(tasks, outputs)
	if len(ready) == 0 {
		return Decision{Kind: DecisionSynthesize, Reason: ReasonDeadlock, Stuck: pending}
	}

	snapshot := outputs.Clone()
	assignments := make([]Assignment, len(ready))
	for i, task := range ready {
		assignments[i] = Assignment{Task: task, Context: snapshot, ThreadID: threadID}
	}
	return Decision{Kind: DecisionDispatch, Reason: ReasonReady, Assignments: assignments}
}
