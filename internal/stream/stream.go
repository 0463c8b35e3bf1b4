// Package stream turns orchestrator events into the external event
// protocol and projects that protocol onto a step timeline.
package stream

import (
	"github.com/ShayCichocki/switchyard/internal/orchestrator"
)

// Type is an external event type.
type Type string

const (
	TypeStepStart Type = "step_start"
	TypeStepEnd   Type = "step_end"
	TypeToolStart Type = "tool_start"
	TypeToolEnd   Type = "tool_end"
	TypeToken     Type = "token"
	TypeInterrupt Type = "interrupt"
)

// Data is the payload of a step_end event, plus the unreachable task IDs
// on the step_start of a synthesis that followed a deadlock.
type Data struct {
	Output string   `json:"output"`
	Stuck  []string `json:"stuck,omitempty"`
}

// Event is one element of the external stream.
type Event struct {
	Type     Type   `json:"type"`
	Name     string `json:"name,omitempty"`
	Content  string `json:"content,omitempty"`
	Data     *Data  `json:"data,omitempty"`
	ThreadID string `json:"threadId,omitempty"`
}

// structuredPhases produce JSON, so their tokens never reach a consumer.
var structuredPhases = map[string]bool{
	orchestrator.PhaseNameClassifier: true,
	orchestrator.PhaseNameSupervisor: true,
}

// Translate maps an internal event to its external form. ok is false for
// events that are not forwarded.
func Translate(ev orchestrator.Event) (out Event, ok bool) {
	switch ev.Type {
	case orchestrator.EventRunStarted, orchestrator.EventPhaseStarted, orchestrator.EventTaskStarted:
		out = Event{Type: TypeStepStart, Name: ev.Name}
		if len(ev.Stuck) > 0 {
			out.Data = &Data{Stuck: ev.Stuck}
		}
	case orchestrator.EventRunCompleted, orchestrator.EventPhaseCompleted, orchestrator.EventTaskCompleted:
		out = Event{Type: TypeStepEnd, Name: ev.Name, Data: &Data{Output: ev.Output}}
	case orchestrator.EventToolStarted:
		out = Event{Type: TypeToolStart, Name: ev.Name}
	case orchestrator.EventToolCompleted:
		out = Event{Type: TypeToolEnd, Name: ev.Name, Content: ev.Content}
	case orchestrator.EventToken:
		if structuredPhases[ev.Name] || ev.Content == "" {
			return Event{}, false
		}
		out = Event{Type: TypeToken, Name: ev.Name, Content: ev.Content}
	case orchestrator.EventSuspended:
		out = Event{Type: TypeInterrupt, Content: ev.Content, ThreadID: ev.ThreadID}
	default:
		return Event{}, false
	}
	return out, true
}

// Writer delivers external events to a transport.
type Writer interface {
	Write(Event) error
}

// Sink adapts w into an orchestrator sink that translates as it goes.
func Sink(w Writer) orchestrator.Sink {
	return func(ev orchestrator.Event) error {
		out, ok := Translate(ev)
		if !ok {
			return nil
		}
		return w.Write(out)
	}
}
