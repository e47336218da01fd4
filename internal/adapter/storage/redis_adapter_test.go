package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestAcquireAndReleaseLock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "lock:test-key")

	token, err := adapter.AcquireLock(ctx, "test-key", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	released, err := adapter.ReleaseLock(ctx, "test-key", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !released {
		t.Error("expected release to succeed")
	}

	// Lock record is gone.
	if err := client.Get(ctx, "lock:test-key").Err(); err != redis.Nil {
		t.Errorf("expected lock deleted, got: %v", err)
	}
}

func TestAcquireLock_HeldByAnother(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "lock:contested")

	first, err := adapter.AcquireLock(ctx, "contested", time.Minute)
	if err != nil || first == "" {
		t.Fatalf("first acquire failed: token=%q err=%v", first, err)
	}

	second, err := adapter.AcquireLock(ctx, "contested", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != "" {
		t.Error("expected second acquire to be rejected")
	}

	adapter.ReleaseLock(ctx, "contested", first)
}

func TestReleaseLock_WrongToken(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "lock:token-safety")

	token, err := adapter.AcquireLock(ctx, "token-safety", time.Minute)
	if err != nil || token == "" {
		t.Fatalf("acquire failed: token=%q err=%v", token, err)
	}

	released, err := adapter.ReleaseLock(ctx, "token-safety", "not-the-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Error("release with a stale token must not succeed")
	}

	// The real holder can still release.
	released, err = adapter.ReleaseLock(ctx, "token-safety", token)
	if err != nil || !released {
		t.Errorf("expected holder release to succeed, got released=%v err=%v", released, err)
	}
}

func TestReleaseLock_AfterExpiryAndReacquisition(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "lock:expiring")

	stale, err := adapter.AcquireLock(ctx, "expiring", 50*time.Millisecond)
	if err != nil || stale == "" {
		t.Fatalf("acquire failed: token=%q err=%v", stale, err)
	}

	time.Sleep(100 * time.Millisecond)

	current, err := adapter.AcquireLock(ctx, "expiring", time.Minute)
	if err != nil || current == "" {
		t.Fatalf("re-acquire after expiry failed: token=%q err=%v", current, err)
	}

	// The stale holder must not be able to release the new holder's lock.
	released, err := adapter.ReleaseLock(ctx, "expiring", stale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Error("stale holder released a re-acquired lock")
	}

	value, err := client.Get(ctx, "lock:expiring").Result()
	if err != nil || value != current {
		t.Errorf("expected current holder's token intact, got %q err=%v", value, err)
	}

	adapter.ReleaseLock(ctx, "expiring", current)
}

func TestAcquireLock_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "lock:race")

	var winners atomic.Int32
	var wg sync.WaitGroup
	concurrency := 50

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := adapter.AcquireLock(ctx, "race", time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if token != "" {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners.Load())
	}

	client.Del(ctx, "lock:race")
}

func TestCacheSetGetDelete(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "cache-test")

	if _, ok, err := adapter.Get(ctx, "cache-test"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := adapter.Set(ctx, "cache-test", `{"hello":"world"}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, ok, err := adapter.Get(ctx, "cache-test")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if value != `{"hello":"world"}` {
		t.Errorf("unexpected value: %q", value)
	}

	if err := adapter.Delete(ctx, "cache-test"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := adapter.Get(ctx, "cache-test"); ok {
		t.Error("expected miss after delete")
	}
}

func TestCacheExpiry(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	if err := adapter.Set(ctx, "cache-ttl-test", "v", 50*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, ok, _ := adapter.Get(ctx, "cache-ttl-test"); ok {
		t.Error("expected entry expired")
	}
}

func TestDeleteByPattern(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	adapter.Set(ctx, "pattern-test:list:1", "a", time.Minute)
	adapter.Set(ctx, "pattern-test:list:2", "b", time.Minute)
	adapter.Set(ctx, "pattern-test:other", "c", time.Minute)

	if err := adapter.DeleteByPattern(ctx, "pattern-test:list:*"); err != nil {
		t.Fatalf("delete by pattern failed: %v", err)
	}

	if _, ok, _ := adapter.Get(ctx, "pattern-test:list:1"); ok {
		t.Error("expected pattern-test:list:1 deleted")
	}
	if _, ok, _ := adapter.Get(ctx, "pattern-test:list:2"); ok {
		t.Error("expected pattern-test:list:2 deleted")
	}
	if _, ok, _ := adapter.Get(ctx, "pattern-test:other"); !ok {
		t.Error("expected pattern-test:other untouched")
	}

	adapter.Delete(ctx, "pattern-test:other")
}
