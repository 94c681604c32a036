package limiter

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLimiter_Allow_Basics(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limiter := NewMemoryLimiter()

	limit := Limit{
		MaxRequests: 10,
		Window:      time.Minute,
	}

	id := Identity{Namespace: "test", Key: "user_1"}

	decision, _ := limiter.Allow(ctx, id, limit)

	if !decision.Allow {
		t.Error("Expected request to be allowed, but got denied!.")
	}

	if decision.Remaining != 9 {
		t.Errorf("Expected 9 remaining requests, got %d instead!", decision.Remaining)
	}

	if decision.ResetTime.IsZero() {
		t.Error("Expected a reset time on the first request")
	}
}

func TestMemoryLimiter_Exhaustion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limiter := NewMemoryLimiter()

	limit := Limit{
		MaxRequests: 3,
		Window:      time.Minute,
	}

	id := Identity{Namespace: "test", Key: "user_1"}

	for i := 0; i < 3; i++ {
		dec, _ := limiter.Allow(ctx, id, limit)
		if !dec.Allow {
			t.Fatalf("Request %d was unexpectedly denied", i)
		}
	}

	dec, _ := limiter.Allow(ctx, id, limit)
	if dec.Allow {
		t.Errorf("The 4th request should have been denied (MaxRequests=3), but was allowed")
	}
	if dec.Remaining != 0 {
		t.Errorf("Expected 0 remaining after exhaustion, got %d", dec.Remaining)
	}
	if dec.RetryAfter <= 0 {
		t.Error("Expected positive RetryAfter on denial")
	}
}

func TestMemoryLimiter_RemainingNeverNegative(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter()

	limit := Limit{MaxRequests: 2, Window: time.Minute}
	id := Identity{Namespace: "test", Key: "user_1"}

	// Keep hammering well past the limit; the raw counter keeps growing but
	// the decision fields must stay clamped.
	var dec Decision
	for i := 0; i < 10; i++ {
		dec, _ = limiter.Allow(ctx, id, limit)
	}

	if dec.Allow {
		t.Error("Expected the 10th request to be denied")
	}
	if dec.Remaining != 0 {
		t.Errorf("Expected Remaining to clamp at 0, got %d", dec.Remaining)
	}
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now))

	limit := Limit{MaxRequests: 3, Window: 60 * time.Second}
	id := Identity{Namespace: "test", Key: "user_1"}

	// Exhaust the window and then some.
	for i := 0; i < 8; i++ {
		limiter.Allow(ctx, id, limit)
	}

	dec, _ := limiter.Allow(ctx, id, limit)
	if dec.Allow {
		t.Fatal("Expected denial before the window reset")
	}

	clock.Advance(61 * time.Second)

	dec, _ = limiter.Allow(ctx, id, limit)
	if !dec.Allow {
		t.Error("Expected a fresh window after the reset time passed")
	}
	if dec.Remaining != 2 {
		t.Errorf("Expected the count to restart at 1 (Remaining=2), got Remaining=%d", dec.Remaining)
	}
	if want := clock.Now().Add(limit.Window); !dec.ResetTime.Equal(want) {
		t.Errorf("Expected ResetTime %v, got %v", want, dec.ResetTime)
	}
}

func TestMemoryLimiter_IndependentKeys(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter()

	limit := Limit{MaxRequests: 2, Window: time.Minute}
	a := Identity{Namespace: "test", Key: "a"}
	b := Identity{Namespace: "test", Key: "b"}

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, a, limit)
	}

	dec, _ := limiter.Allow(ctx, a, limit)
	if dec.Allow {
		t.Fatal("Key a should be exhausted")
	}

	dec, _ = limiter.Allow(ctx, b, limit)
	if !dec.Allow {
		t.Error("Exhausting key a must not affect key b")
	}
	if dec.Remaining != 1 {
		t.Errorf("Expected key b to start its own window, got Remaining=%d", dec.Remaining)
	}
}

func TestMemoryLimiter_NamespaceSeparation(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter()

	limit := Limit{MaxRequests: 1, Window: time.Minute}
	ip := Identity{Namespace: "ip", Key: "203.0.113.9"}
	search := Identity{Namespace: "search", Key: "203.0.113.9"}

	limiter.Allow(ctx, ip, limit)

	dec, _ := limiter.Allow(ctx, search, limit)
	if !dec.Allow {
		t.Error("Same key under a different namespace must have its own window")
	}
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now), WithSweepInterval(time.Minute))

	limit := Limit{MaxRequests: 5, Window: 30 * time.Second}

	limiter.Allow(ctx, Identity{Namespace: "test", Key: "expired"}, limit)

	clock.Advance(45 * time.Second)
	limiter.Allow(ctx, Identity{Namespace: "test", Key: "live"}, limit)

	if got := limiter.Len(); got != 2 {
		t.Fatalf("Expected both entries before the sweep, got %d", got)
	}

	limiter.Sweep()

	if got := limiter.Len(); got != 1 {
		t.Errorf("Expected the expired entry to be swept, got %d entries", got)
	}

	// The surviving entry must come through the sweep intact: its window is
	// still open, so the next call increments rather than resets.
	dec, _ := limiter.Allow(ctx, Identity{Namespace: "test", Key: "live"}, limit)
	if dec.Remaining != 3 {
		t.Errorf("Sweep corrupted the live entry: expected Remaining=3, got %d", dec.Remaining)
	}
}

func TestMemoryLimiter_LazySweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := NewMemoryLimiter(WithClock(clock.Now), WithSweepInterval(5*time.Minute))

	limit := Limit{MaxRequests: 5, Window: time.Second}

	limiter.Allow(ctx, Identity{Namespace: "test", Key: "old"}, limit)

	// Expired, but the sweep interval has not elapsed: Allow leaves it alone.
	clock.Advance(2 * time.Minute)
	limiter.Allow(ctx, Identity{Namespace: "test", Key: "other"}, limit)
	if got := limiter.Len(); got != 2 {
		t.Fatalf("Expected no sweep before the interval elapsed, got %d entries", got)
	}

	// Past the interval the next Allow call sweeps as a side effect.
	clock.Advance(4 * time.Minute)
	limiter.Allow(ctx, Identity{Namespace: "test", Key: "fresh"}, limit)
	if got := limiter.Len(); got != 1 {
		t.Errorf("Expected the piggybacked sweep to drop expired entries, got %d", got)
	}
}

// Race Test
func TestMemoryLimiter_ThreadSafety(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limiter := NewMemoryLimiter()

	limit := Limit{
		MaxRequests: 100,
		Window:      time.Minute,
	}

	id := Identity{Namespace: "test", Key: "user_1"}

	var wg sync.WaitGroup

	wg.Add(100)
	for range 100 {
		go func() {
			defer wg.Done()
			limiter.Allow(ctx, id, limit)
		}()
	}
	wg.Wait()

	dec, _ := limiter.Allow(ctx, id, limit)
	if dec.Allow {
		t.Errorf("Expected window to be exhausted after 100 concurrent requests, but 101st was allowed")
	}
}

func BenchmarkMemoryLimiter_Allow(b *testing.B) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limiter := NewMemoryLimiter()

	limit := Limit{
		MaxRequests: 100000,
		Window:      time.Minute,
	}
	id := Identity{Namespace: "test", Key: "user_1"}

	for b.Loop() {
		limiter.Allow(ctx, id, limit)
	}
}
