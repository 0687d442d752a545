package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "email:rate_limit:"

// Limiter tracks per-provider send counts inside a fixed window.
// Implementations must be safe for concurrent use by many workers.
type Limiter interface {
	// CanSend reports whether the provider is under its ceiling.
	CanSend(ctx context.Context, provider string) (bool, error)
	// RecordSent atomically increments the provider's counter and refreshes
	// the window expiry.
	RecordSent(ctx context.Context, provider string) error
}

// RedisLimiter is the shared limiter: all workers across all processes
// observe a single counter per provider. Increments use Redis INCR so
// concurrent workers cannot lose updates.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 1000
	}
	if window <= 0 {
		window = time.Hour
	}
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) CanSend(ctx context.Context, provider string) (bool, error) {
	count, err := l.client.Get(ctx, keyPrefix+provider).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return count < l.limit, nil
}

func (l *RedisLimiter) RecordSent(ctx context.Context, provider string) error {
	key := keyPrefix + provider
	if err := l.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return l.client.Expire(ctx, key, l.window).Err()
}

// MemoryLimiter keeps the same window semantics in process memory. It is
// used when no Redis URL is configured (single-process dev setups) and in
// tests; it cannot coordinate limits across processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int64
	window  time.Duration
	counts  map[string]int64
	expires map[string]time.Time
}

func NewMemoryLimiter(limit int64, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1000
	}
	if window <= 0 {
		window = time.Hour
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
	}
}

func (l *MemoryLimiter) CanSend(ctx context.Context, provider string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(provider)
	return l.counts[provider] < l.limit, nil
}

func (l *MemoryLimiter) RecordSent(ctx context.Context, provider string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire(provider)
	l.counts[provider]++
	l.expires[provider] = time.Now().Add(l.window)
	return nil
}

// expire drops a counter whose window has passed. Callers hold the mutex.
func (l *MemoryLimiter) expire(provider string) {
	if exp, ok := l.expires[provider]; ok && time.Now().After(exp) {
		delete(l.counts, provider)
		delete(l.expires, provider)
	}
}
