package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	in := Snapshot{SessionID: "s1", Level: "beginner", Mode: "topic", Target: "SQL", Question: "What is a join?"}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Level != in.Level || got.Mode != in.Mode || got.Target != in.Target || got.Question != in.Question {
		t.Fatalf("Load() = %+v, want %+v", got, in)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt should be stamped on save")
	}

	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreExpiresByTTL(t *testing.T) {
	s := NewInMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Save(context.Background(), Snapshot{SessionID: "s1", Level: "advanced"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := s.Load(context.Background(), "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound after ttl", err)
	}
}

func TestNewSnapshotStoreDefaultsToMemory(t *testing.T) {
	s, kind, err := NewSnapshotStore(context.Background(), Config{TTL: time.Hour}, nil)
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}
	defer s.Close()
	if kind != "memory" {
		t.Fatalf("kind = %q, want memory", kind)
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("redis://:secret@localhost:6380/2", "")
	if err != nil {
		t.Fatalf("redisOptions() error = %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("opts = {%s %d %s}, want parsed URL", opts.Addr, opts.DB, opts.Password)
	}

	opts, err = redisOptions("localhost:6379", "pw")
	if err != nil {
		t.Fatalf("redisOptions() error = %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Password != "pw" {
		t.Fatalf("opts = {%s %s}, want bare address", opts.Addr, opts.Password)
	}
}
