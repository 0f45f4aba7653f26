package rate

import (
	"sync"
	"time"
)

// Policy is a fixed-window limit: at most Limit hits per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// PerMinute is a policy of n hits per minute. n <= 0 disables limiting.
func PerMinute(n int) Policy {
	return Policy{Limit: n, Window: time.Minute}
}

func (p Policy) Disabled() bool {
	return p.Limit <= 0 || p.Window <= 0
}

type Limiter interface {
	Allow(key string, p Policy) (bool, time.Duration)
}

type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow records a hit for key and reports whether it is within p, along with
// the time left in the current window.
func (m *MemoryLimiter) Allow(key string, p Policy) (bool, time.Duration) {
	if p.Disabled() {
		return true, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) || b.window != p.Window {
		b = &bucket{resetAt: now.Add(p.Window), window: p.Window}
		m.buckets[key] = b
	}

	if b.count >= p.Limit {
		return false, b.resetAt.Sub(now)
	}
	b.count++
	return true, b.resetAt.Sub(now)
}

// Prune drops buckets whose window has ended.
func (m *MemoryLimiter) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, k)
			n++
		}
	}
	return n
}
