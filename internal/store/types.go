package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot holds the non-transient fields of a practice session.
// Recording, playback, answer and evaluation state are never persisted.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Mode      string    `json:"mode"`
	Target    string    `json:"target"`
	Question  string    `json:"question"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStore persists session snapshots keyed by session id.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
