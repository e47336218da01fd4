package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/port"
)

const productListCachePattern = "products:list:*"

func productCacheKey(id string) string {
	return "products:" + id
}

func productListCacheKey(page, limit int, sortBy, order string) string {
	return fmt.Sprintf("products:list:%d:%d:%s:%s", page, limit, sortBy, order)
}

func cartCacheKey(userID string) string {
	return "carts:user:" + userID
}

func userCacheKey(id string) string {
	return "users:" + id
}

// cacheGetJSON loads key into out. Cache failures are logged and reported as
// misses so an unavailable cache only costs latency, never correctness.
func cacheGetJSON(ctx context.Context, cache port.CacheRepository, key string, out any) bool {
	raw, ok, err := cache.Get(ctx, key)
	if err != nil {
		obs.Logger.Warn("cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		obs.CacheHitTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		obs.Logger.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	obs.CacheHitTotal.WithLabelValues("hit").Inc()
	return true
}

func cacheSetJSON(ctx context.Context, cache port.CacheRepository, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		obs.Logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := cache.Set(ctx, key, string(raw), ttl); err != nil {
		obs.Logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func cacheDelete(ctx context.Context, cache port.CacheRepository, keys ...string) {
	if err := cache.Delete(ctx, keys...); err != nil {
		obs.Logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func cacheDeletePattern(ctx context.Context, cache port.CacheRepository, pattern string) {
	if err := cache.DeleteByPattern(ctx, pattern); err != nil {
		obs.Logger.Warn("cache pattern invalidation failed", "pattern", pattern, "error", err)
	}
}

// releaseLock releases on a cancellation-free context so a caller timeout
// cannot leak the lock until its TTL.
func releaseLock(ctx context.Context, locks port.LockRepository, key, token string) {
	released, err := locks.ReleaseLock(context.WithoutCancel(ctx), key, token)
	if err != nil {
		obs.Logger.Warn("lock release failed", "key", key, "error", err)
		return
	}
	if !released {
		obs.Logger.Warn("lock expired before release", "key", key)
	}
}
