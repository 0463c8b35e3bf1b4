package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory. States are stored
// serialized so a loaded checkpoint never aliases the saved one.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

type memoryEntry struct {
	state     []byte
	prompt    string
	createdAt time.Time
	updatedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

// Save upserts a checkpoint.
func (m *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	if cp.ThreadID == "" {
		return errors.New("save checkpoint: empty thread id")
	}
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ts := now()
	entry := memoryEntry{state: data, prompt: cp.Prompt, createdAt: ts, updatedAt: ts}
	if prev, ok := m.data[cp.ThreadID]; ok {
		entry.createdAt = prev.createdAt
	}
	m.data[cp.ThreadID] = entry
	return nil
}

// Load returns the checkpoint for a thread.
func (m *MemoryStore) Load(_ context.Context, threadID string) (Checkpoint, error) {
	m.mu.RLock()
	entry, ok := m.data[threadID]
	m.mu.RUnlock()
	if !ok {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, threadID)
	}
	return entry.checkpoint(threadID)
}

// Delete removes the checkpoint for a thread.
func (m *MemoryStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, threadID)
	return nil
}

// List returns all checkpoints, most recently updated first.
func (m *MemoryStore) List(_ context.Context) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Checkpoint, 0, len(m.data))
	for id, entry := range m.data {
		cp, err := entry.checkpoint(id)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// PurgeOlderThan deletes checkpoints not updated within d.
func (m *MemoryStore) PurgeOlderThan(_ context.Context, d time.Duration) (int64, error) {
	cutoff := now().Add(-d)
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, entry := range m.data {
		if entry.updatedAt.Before(cutoff) {
			delete(m.data, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (e memoryEntry) checkpoint(threadID string) (Checkpoint, error) {
	cp := Checkpoint{
		ThreadID:  threadID,
		Prompt:    e.prompt,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
	if err := json.Unmarshal(e.state, &cp.State); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint state: %w", err)
	}
	return cp, nil
}
