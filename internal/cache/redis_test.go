package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestHashKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{
			name:  "single part",
			parts: []string{"test"},
		},
		{
			name:  "multiple parts",
			parts: []string{"test", "key", "with", "many", "parts"},
		},
		{
			name:  "empty parts",
			parts: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed1 := HashKey(tt.parts...)
			hashed2 := HashKey(tt.parts...)

			if hashed1 != hashed2 {
				t.Errorf("HashKey() should be consistent, got %s and %s", hashed1, hashed2)
			}

			// MD5 hex
			if len(hashed1) != 32 {
				t.Errorf("HashKey() should return 32 character hex string, got length %d", len(hashed1))
			}
		})
	}

	if HashKey("a", "b") == HashKey("ab") {
		t.Error("HashKey() should separate parts")
	}
}

func TestCache_NamespaceKey(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "simple key",
			key:      "test",
			expected: "outreachnet:test",
		},
		{
			name:     "key with colon",
			key:      "profile:uid-1",
			expected: "outreachnet:profile:uid-1",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "outreachnet:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cache.namespaceKey(tt.key)
			if result != tt.expected {
				t.Errorf("namespaceKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "greeting", "hello", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists("outreachnet:greeting") {
		t.Fatal("key not namespaced in redis")
	}

	got, err := c.Get(ctx, "greeting")
	if err != nil || got != "hello" {
		t.Errorf("Get() = %q, %v", got, err)
	}

	ok, err := c.Exists(ctx, "greeting")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v", ok, err)
	}

	if err := c.Delete(ctx, "greeting"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "greeting"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrMiss", err)
	}
}

func TestCache_JSONAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	type profile struct {
		Name string `json:"name"`
	}
	if err := c.SetJSON(ctx, "p", profile{Name: "Ada"}, time.Second); err != nil {
		t.Fatal(err)
	}

	var got profile
	if err := c.GetJSON(ctx, "p", &got); err != nil || got.Name != "Ada" {
		t.Errorf("GetJSON() = %+v, %v", got, err)
	}

	mr.FastForward(2 * time.Second)
	if err := c.GetJSON(ctx, "p", &got); !errors.Is(err, ErrMiss) {
		t.Errorf("GetJSON() after TTL error = %v, want ErrMiss", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Get() error = %v", err)
	}
	if err := c.Set(ctx, "k", "v", 0); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Set() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.Health(ctx); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Health() error = %v", err)
	}
}
