package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ShayCichocki/switchyard/pkg/models"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a thread.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Checkpoint is the durable snapshot of a suspended run.
type Checkpoint struct {
	ThreadID string                `json:"thread_id"`
	State    models.ExecutionState `json:"state"`
	// Prompt is the text shown to the human while the run waits.
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointStore persists one checkpoint per thread.
type CheckpointStore interface {
	io.Closer
	// Save writes cp, replacing any checkpoint for the same thread.
	Save(ctx context.Context, cp Checkpoint) error
	// Load returns the checkpoint for threadID or ErrCheckpointNotFound.
	Load(ctx context.Context, threadID string) (Checkpoint, error)
	// Delete removes the checkpoint for threadID. Missing checkpoints are not an error.
	Delete(ctx context.Context, threadID string) error
	// List returns all checkpoints, most recently updated first.
	List(ctx context.Context) ([]Checkpoint, error)
	// PurgeOlderThan deletes checkpoints not updated within d and returns how many went.
	PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error)
}

// Compile-time verification that both stores implement CheckpointStore.
var (
	_ CheckpointStore = (*DB)(nil)
	_ CheckpointStore = (*MemoryStore)(nil)
)

// now is replaced in tests.
var now = time.Now

// Save upserts a checkpoint. CreatedAt is kept from the first save.
func (db *DB) Save(ctx context.Context, cp Checkpoint) error {
	if cp.ThreadID == "" {
		return errors.New("save checkpoint: empty thread id")
	}
	data, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}
	ts := formatTime(now())
	_, err = db.exec(ctx, `
		INSERT INTO checkpoints (thread_id, state, prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			state = excluded.state,
			prompt = excluded.prompt,
			updated_at = excluded.updated_at
	`, cp.ThreadID, string(data), cp.Prompt, ts, ts)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for a thread.
func (db *DB) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	row := db.queryRow(ctx, `
		SELECT thread_id, state, prompt, created_at, updated_at
		FROM checkpoints WHERE thread_id = ?
	`, threadID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrCheckpointNotFound, threadID)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// Delete removes the checkpoint for a thread.
func (db *DB) Delete(ctx context.Context, threadID string) error {
	if _, err := db.exec(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List returns all checkpoints, most recently updated first.
func (db *DB) List(ctx context.Context) ([]Checkpoint, error) {
	rows, err := db.query(ctx, `
		SELECT thread_id, state, prompt, created_at, updated_at
		FROM checkpoints ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes checkpoints not updated within d.
func (db *DB) PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error) {
	cutoff := formatTime(now().Add(-d))
	result, err := db.exec(ctx, "DELETE FROM checkpoints WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge checkpoints: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(s scanner) (Checkpoint, error) {
	var cp Checkpoint
	var data, createdAt, updatedAt string
	if err := s.Scan(&cp.ThreadID, &data, &cp.Prompt, &createdAt, &updatedAt); err != nil {
		return Checkpoint{}, err
	}
	if err := json.Unmarshal([]byte(data), &cp.State); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint state: %w", err)
	}
	cp.CreatedAt, _ = parseTime(createdAt)
	cp.UpdatedAt, _ = parseTime(updatedAt)
	return cp, nil
}
