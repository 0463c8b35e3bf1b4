package orchestrator

import (
	"context"
	"sync"
	"time"
)

// EventEmitter delivers events to a Sink one at a time. Workers emit from
// several goroutines, so delivery is serialized under a mutex. The first
// sink error is kept, later events are dropped, and the run context is
// cancelled so in-flight model calls stop.
type EventEmitter struct {
	mu       sync.Mutex
	sink     Sink
	threadID string
	cancel   context.CancelFunc
	err      error
	count    int
}

// NewEventEmitter creates an emitter. A nil sink discards events.
func NewEventEmitter(sink Sink, threadID string, cancel context.CancelFunc) *EventEmitter {
	return &EventEmitter{sink: sink, threadID: threadID, cancel: cancel}
}

// Emit delivers ev unless an earlier delivery failed.
func (e *EventEmitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return
	}
	if ev.ThreadID == "" {
		ev.ThreadID = e.threadID
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.count++
	if e.sink == nil {
		return
	}
	if err := e.sink(ev); err != nil {
		e.err = err
		if e.cancel != nil {
			e.cancel()
		}
	}
}

// Err returns the first sink error.
func (e *EventEmitter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Count returns how many events were emitted.
func (e *EventEmitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
