package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "role:abc", []byte(`["user_read"]`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, err := c.Get(ctx, "role:abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(val) != `["user_read"]` {
		t.Fatalf("unexpected value %q", val)
	}

	if err := c.Delete(ctx, "role:abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "role:abc"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryCacheFlush(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected empty cache, got %v", err)
	}
}
