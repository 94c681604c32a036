package limiter

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

type window struct {
	count     int64
	resetTime time.Time
}

// MemoryLimiter is an in-process fixed-window rate limiter.
//
// It is safe for concurrent use by multiple goroutines, but its state is local
// to the process and is not shared across replicas. Use RedisLimiter when you
// need a single global limit across multiple instances.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	now       func() time.Time
	sweepEach time.Duration
	lastSweep time.Time
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock replaces the limiter's time source. Tests use this to advance
// time deterministically instead of sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) { m.now = now }
}

// WithSweepInterval sets how often expired windows are removed from memory.
// The sweep piggybacks on Allow calls; a zero or negative interval sweeps on
// every call.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryLimiter) { m.sweepEach = d }
}

// NewMemoryLimiter constructs a MemoryLimiter with empty state.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		windows:   make(map[string]*window),
		now:       time.Now,
		sweepEach: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastSweep = m.now()
	return m
}

// Allow checks whether a request for the given identity should be allowed
// under the provided limit. Each call counts as 1 request against the
// identity's current window.
//
// The counter keeps incrementing past MaxRequests while the window is open;
// only the derived Allow and Remaining fields are clamped. A fresh window
// starts on the first call for an identity and on the first call after
// ResetTime has passed.
func (m *MemoryLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= m.sweepEach {
		m.sweepLocked(now)
	}

	key := string(id.Namespace) + ":" + id.Key
	w, exists := m.windows[key]
	if !exists || !now.Before(w.resetTime) {
		reset := now.Add(limit.Window)
		m.windows[key] = &window{count: 1, resetTime: reset}
		return Decision{
			Allow:      true,
			Remaining:  limit.MaxRequests - 1,
			RetryAfter: 0,
			ResetTime:  reset,
		}, nil
	}

	w.count++
	remaining := limit.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}
	dec := Decision{
		Allow:     w.count <= limit.MaxRequests,
		Remaining: remaining,
		ResetTime: w.resetTime,
	}
	if !dec.Allow {
		dec.RetryAfter = w.resetTime.Sub(now)
	}
	return dec, nil
}

// Sweep removes all windows whose reset time has passed. It is also run
// automatically during Allow, at most once per sweep interval, so calling it
// by hand is only needed when driving the limiter from a timer.
func (m *MemoryLimiter) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
}

func (m *MemoryLimiter) sweepLocked(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.resetTime) {
			delete(m.windows, key)
		}
	}
	m.lastSweep = now
}

// Len reports the number of tracked identities, including ones whose window
// has expired but has not been swept yet.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
