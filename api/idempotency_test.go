package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupDeduper(t *testing.T) (*RedisDeduper, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return NewRedisDeduper(client, time.Minute), client
}

func TestRedisDeduperAdd(t *testing.T) {
	deduper, _ := setupDeduper(t)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "moves", "k1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatal("expected key to be added")
	}

	added, err = deduper.Add(ctx, "moves", "k1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatal("expected duplicate on second add")
	}
}

func TestRedisDeduperScopeNamespacing(t *testing.T) {
	deduper, client := setupDeduper(t)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "moves", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	added, err := deduper.Add(ctx, "notify", "k1")
	if err != nil {
		t.Fatalf("add other scope: %v", err)
	}
	if !added {
		t.Fatal("same key in another scope must be fresh")
	}

	exists, err := client.Exists(ctx, "moves:k1", "notify:k1").Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 2 {
		t.Fatalf("expected both namespaced keys, got %d", exists)
	}
}

func TestRedisDeduperRemoveAllowsRetry(t *testing.T) {
	deduper, _ := setupDeduper(t)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "moves", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := deduper.Remove(ctx, "moves", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err := deduper.Add(ctx, "moves", "k1")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if !added {
		t.Fatal("expected key to be fresh after removal")
	}
}
