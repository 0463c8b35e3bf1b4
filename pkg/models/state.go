package models

import "sort"

// AgentOutputs maps task ID to result text. It is append-only during a
// request: the first write for an ID wins and later writes are ignored.
type AgentOutputs map[string]string

// Has reports whether an output is recorded for id.
func (o AgentOutputs) Has(id string) bool {
	_, ok := o[id]
	return ok
}

// Merge returns a new map holding o plus every key of update that o does
// not already have. Neither input is modified, so applying the same update
// twice yields the same map as applying it once.
func (o AgentOutputs) Merge(update AgentOutputs) AgentOutputs {
	out := make(AgentOutputs, len(o)+len(update))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range update {
		if _, exists := out[k]; exists {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a copy of the map.
func (o AgentOutputs) Clone() AgentOutputs {
	return AgentOutputs(nil).Merge(o)
}

// Keys returns the recorded task IDs in sorted order.
func (o AgentOutputs) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Phase is a position in the execution state machine. It is recorded in
// checkpoints so a resumed run re-enters where it stopped.
type Phase string

const (
	PhaseClassify      Phase = "classify"
	PhasePlan          Phase = "plan"
	PhaseDispatch      Phase = "dispatch"
	PhaseSynthesize    Phase = "synthesize"
	PhaseRefine        Phase = "refine"
	PhaseApproval      Phase = "approval"
	PhaseApprovalReply Phase = "approval_reply"
	PhaseDone          Phase = "done"
)

// ExecutionState is the record threaded through every stage of a run.
type ExecutionState struct {
	Messages []Message    `json:"messages"`
	Config   Config       `json:"config"`
	Intent   Intent       `json:"intent,omitempty"`
	Result   string       `json:"result,omitempty"`
	Tasks    TaskGraph    `json:"tasks"`
	Outputs  AgentOutputs `json:"outputs"`
	ThreadID string       `json:"thread_id"`
	// Position is the phase the run will execute next.
	Position Phase `json:"position"`
}

// NewExecutionState returns a fresh state for one request.
func NewExecutionState(threadID string) ExecutionState {
	return ExecutionState{
		Config:   DefaultConfig(),
		Tasks:    TaskGraph{},
		Outputs:  AgentOutputs{},
		ThreadID: threadID,
		Position: PhaseClassify,
	}
}

// Update is a partial state change produced by one component. Nil or empty
// fields leave the corresponding state field untouched.
type Update struct {
	// Messages are appended.
	Messages []Message
	// Config is merged field-wise.
	Config *Config
	// Intent, Result, Tasks, ThreadID and Position overwrite when non-nil.
	Intent   *Intent
	Result   *string
	Tasks    *TaskGraph
	ThreadID *string
	Position *Phase
	// Outputs are merged first-write-wins per key.
	Outputs AgentOutputs
}

// Apply returns the state with u merged in according to each field's rule.
// The receiver is not modified.
func (s ExecutionState) Apply(u Update) ExecutionState {
	if len(u.Messages) > 0 {
		msgs := make([]Message, 0, len(s.Messages)+len(u.Messages))
		msgs = append(msgs, s.Messages...)
		s.Messages = append(msgs, u.Messages...)
	}
	if u.Config != nil {
		s.Config = s.Config.Merge(*u.Config)
	}
	if u.Intent != nil {
		s.Intent = *u.Intent
	}
	if u.Result != nil {
		s.Result = *u.Result
	}
	if u.Tasks != nil {
		s.Tasks = u.Tasks.Clone()
	}
	if u.ThreadID != nil {
		s.ThreadID = *u.ThreadID
	}
	if u.Position != nil {
		s.Position = *u.Position
	}
	if len(u.Outputs) > 0 {
		s.Outputs = s.Outputs.Merge(u.Outputs)
	}
	return s
}

// Completed returns the set of task IDs with a recorded output.
func (s ExecutionState) Completed() map[string]bool {
	done := make(map[string]bool, len(s.Outputs))
	for id := range s.Outputs {
		done[id] = true
	}
	return done
}

// Ptr returns a pointer to v. It keeps Update literals short.
func Ptr[T any](v T) *T {
	return &v
}
