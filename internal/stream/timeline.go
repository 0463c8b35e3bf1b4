package stream

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ShayCichocki/switchyard/pkg/models"
)

// Timeline rebuilds the step list a chat client shows from the external
// event stream. It implements Writer so it can sit next to a transport.
type Timeline struct {
	mu     sync.Mutex
	steps  []models.Step
	newID  func() string
	paused bool
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{newID: uuid.NewString}
}

// Write applies ev and never fails.
func (t *Timeline) Write(ev Event) error {
	t.Apply(ev)
	return nil
}

// Apply updates the timeline:
//   - token appends to the most recent running step with the same name,
//     or to the last running step when none matches
//   - step_start and tool_start push a running step
//   - step_end and tool_end complete the most recent running step with the
//     same name, replacing its content with the tool content or step output
//   - interrupt marks the timeline as waiting
func (t *Timeline) Apply(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case TypeToken:
		i := -1
		if ev.Name != "" {
			i = t.lastRunning(ev.Name)
		}
		if i < 0 {
			i = t.lastRunning("")
		}
		if i >= 0 {
			t.steps[i].Content += ev.Content
		}
	case TypeStepStart, TypeToolStart:
		t.paused = false
		t.steps = append(t.steps, models.Step{
			ID:     t.newID(),
			Name:   ev.Name,
			Status: models.StepRunning,
			Kind:   models.StepText,
		})
	case TypeStepEnd, TypeToolEnd:
		i := t.lastRunning(ev.Name)
		if i < 0 {
			return
		}
		t.steps[i].Status = models.StepCompleted
		if ev.Type == TypeToolEnd {
			t.steps[i].Content = ev.Content
		} else if ev.Data != nil {
			t.steps[i].Content = ev.Data.Output
		}
	case TypeInterrupt:
		t.paused = true
	}
}

// lastRunning returns the index of the most recent running step named
// name, or of any running step when name is empty.
func (t *Timeline) lastRunning(name string) int {
	for i := len(t.steps) - 1; i >= 0; i-- {
		s := t.steps[i]
		if s.Status == models.StepRunning && (name == "" || s.Name == name) {
			return i
		}
	}
	return -1
}

// Steps returns a copy of the timeline.
func (t *Timeline) Steps() []models.Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Step(nil), t.steps...)
}

// Waiting reports whether the last event was an interrupt.
func (t *Timeline) Waiting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}
