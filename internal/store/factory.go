package store

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	TTL           time.Duration
}

// NewSnapshotStore picks postgres when a database URL is set, then redis, else in-memory.
// An unreachable redis degrades to in-memory rather than failing startup.
func NewSnapshotStore(ctx context.Context, cfg Config, log *slog.Logger) (SnapshotStore, string, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.TTL)
		if err != nil {
			return nil, "", err
		}
		return s, "postgres", nil
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		s, err := NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.TTL)
		if err == nil {
			return s, "redis", nil
		}
		if log != nil {
			log.Warn("redis unavailable; using in-memory snapshot store", "error", err)
		}
	}
	return NewInMemoryStore(cfg.TTL), "memory", nil
}
