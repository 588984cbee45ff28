package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreExpiresEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, err := store.Get(ctx, "k"); err != nil || got != "v" {
		t.Fatalf("expected v, got %q err=%v", got, err)
	}

	now = now.Add(31 * time.Second)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStoreSetNX(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "lock", "1", 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to succeed, ok=%v err=%v", ok, err)
	}
	ok, _ = store.SetNX(ctx, "lock", "2", 10*time.Second)
	if ok {
		t.Fatal("expected second SetNX to fail while key is live")
	}

	now = now.Add(10 * time.Second)
	ok, _ = store.SetNX(ctx, "lock", "3", 10*time.Second)
	if !ok {
		t.Fatal("expected SetNX to succeed once the key expired")
	}
}

func TestMemoryStoreDeleteAndNoExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1", 0)
	_ = store.Set(ctx, "b", "2", 0)
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a deleted, got %v", err)
	}
	if got, _ := store.Get(ctx, "b"); got != "2" {
		t.Fatalf("expected b kept, got %q", got)
	}
}
