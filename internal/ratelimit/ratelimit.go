// Package ratelimit throttles prompt submission per user.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	// Allow reports whether one more request for key fits in the budget.
	Allow(ctx context.Context, key string) (bool, error)
}

type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter is a fixed window counter shared by every server instance.
type RedisLimiter struct {
	store  windowCounter
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisLimiter(store windowCounter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{store: store, limit: int64(limit), window: window, prefix: "ratelimit:prompt:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(l.window)
	n, err := l.store.IncrWindow(ctx, fmt.Sprintf("%s%s:%d", l.prefix, key, bucket), l.window)
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}

// LocalLimiter keeps one token bucket per key in process memory.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*entry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLocalLimiter allows perWindow requests per window with the given burst.
func NewLocalLimiter(perWindow int, window time.Duration, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LocalLimiter{
		buckets: make(map[string]*entry),
		limit:   rate.Limit(float64(perWindow) / window.Seconds()),
		burst:   burst,
		idle:    10 * window,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
		l.evict(now)
	}
	e.seen = now
	return e.lim.AllowN(now, 1), nil
}

// evict drops buckets that have been idle long enough to be full again.
func (l *LocalLimiter) evict(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	for k, e := range l.buckets {
		if now.Sub(e.seen) > l.idle {
			delete(l.buckets, k)
		}
	}
}
