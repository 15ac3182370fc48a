package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
)

func TestLRUCacheBasicOperations(t *testing.T) {
	c := NewLRUCache(100)
	defer c.Close()
	ctx := context.Background()

	t.Run("GetMissReturnsNil", func(t *testing.T) {
		val, err := c.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil on miss, got %v", val)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "summary:latest", []byte(`{"id":"r1"}`), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		val, err := c.Get(ctx, "summary:latest")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != `{"id":"r1"}` {
			t.Errorf("unexpected value: %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set(ctx, "gone", []byte("x"), time.Minute)
		if err := c.Delete(ctx, "gone"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		val, _ := c.Get(ctx, "gone")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		c.Set(ctx, "k", []byte("a"), time.Minute)
		c.Set(ctx, "k", []byte("b"), time.Minute)
		val, _ := c.Get(ctx, "k")
		if string(val) != "b" {
			t.Errorf("expected overwritten value, got %s", val)
		}
	})
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	val, err := c.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != nil {
		t.Error("expected expired entry to miss")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}

	size, capacity := c.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("expected size 3 of 3, got %d of %d", size, capacity)
	}

	// Oldest entries are evicted first.
	if val, _ := c.Get(ctx, "k0"); val != nil {
		t.Error("expected k0 evicted")
	}
	if val, _ := c.Get(ctx, "k4"); val == nil {
		t.Error("expected k4 retained")
	}
}

func TestLRUCacheRecentUseSurvivesEviction(t *testing.T) {
	c := NewLRUCache(2)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Get(ctx, "a") // touch a, making b the eviction candidate
	c.Set(ctx, "c", []byte("3"), time.Minute)

	if val, _ := c.Get(ctx, "a"); val == nil {
		t.Error("expected recently used entry retained")
	}
	if val, _ := c.Get(ctx, "b"); val != nil {
		t.Error("expected least recently used entry evicted")
	}
}

func TestNewFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 10})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()
		if err := c.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported cache type")
		}
	})
}
