package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxTrackedKeys = 10000

// MemoryLimiter is a per-process token bucket per key. It spreads the
// window's budget evenly, allowing a full window's worth as burst. Use it when
// a single instance runs without Redis.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit < 1 {
		limit = 1
	}
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (m *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.limiters) > maxTrackedKeys {
		m.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(m.window/time.Duration(m.limit)), m.limit)
		m.limiters[key] = l
	}
	return l
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()
	res := m.getLimiter(key).ReserveN(now, 1)
	if !res.OK() {
		return false, m.window, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (m *MemoryLimiter) Limit() int { return m.limit }

func (m *MemoryLimiter) Window() time.Duration { return m.window }
