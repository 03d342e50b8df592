package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists practice snapshots in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS practice_snapshots (
			session_id TEXT PRIMARY KEY,
			level TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			target TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_practice_snapshots_updated ON practice_snapshots (updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO practice_snapshots (session_id, level, mode, target, question, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO UPDATE SET
		   level = EXCLUDED.level,
		   mode = EXCLUDED.mode,
		   target = EXCLUDED.target,
		   question = EXCLUDED.question,
		   updated_at = EXCLUDED.updated_at`,
		snap.SessionID,
		snap.Level,
		snap.Mode,
		snap.Target,
		snap.Question,
		snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, level, mode, target, question, updated_at
		 FROM practice_snapshots WHERE session_id=$1`,
		sessionID,
	).Scan(&snap.SessionID, &snap.Level, &snap.Mode, &snap.Target, &snap.Question, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if s.ttl > 0 && time.Since(snap.UpdatedAt) > s.ttl {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM practice_snapshots WHERE session_id=$1`, sessionID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
