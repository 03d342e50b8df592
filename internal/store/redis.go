package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "practice:snapshot:"

// RedisStore keeps snapshots as hashes that expire after the snapshot TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore accepts either a redis:// URL or a bare host:port address.
func NewRedisStore(ctx context.Context, url, password string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redisOptions(url, password)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisOptions(url, password string) (*redis.Options, error) {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return opts, nil
	}
	return &redis.Options{Addr: url, Password: password, DB: 0}, nil
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	key := redisKeyPrefix + snap.SessionID
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"session_id": snap.SessionID,
		"level":      snap.Level,
		"mode":       snap.Mode,
		"target":     snap.Target,
		"question":   snap.Question,
		"updated_at": snap.UpdatedAt.Format(time.RFC3339Nano),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if len(fields) == 0 {
		return Snapshot{}, ErrNotFound
	}
	snap := Snapshot{
		SessionID: fields["session_id"],
		Level:     fields["level"],
		Mode:      fields["mode"],
		Target:    fields["target"],
		Question:  fields["question"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		snap.UpdatedAt = ts
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
