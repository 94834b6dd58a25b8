package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %q", got)
	}

	got, err = c.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty string for miss, got %q", got)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(30 * time.Second)
	if got, _ := c.Get(ctx, "k"); got != "v" {
		t.Fatalf("expected hit before expiry, got %q", got)
	}
	now = now.Add(31 * time.Second)
	if got, _ := c.Get(ctx, "k"); got != "" {
		t.Fatalf("expected miss after expiry, got %q", got)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "2", 0)
	if err := c.Delete(ctx, "a", "b", "never-existed"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := c.Get(ctx, "a"); got != "" {
		t.Fatalf("expected a deleted, got %q", got)
	}
}
