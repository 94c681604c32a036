package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Named TTL tiers for the archive's hot queries. They are a configuration
// convenience, not part of the cache contract; any positive duration works.
const (
	// TTLShort suits per-request aggregates such as search result counts.
	TTLShort = time.Minute
	// TTLMedium suits homepage aggregates ("featured:homepage").
	TTLMedium = 5 * time.Minute
	// TTLLong suits slow-changing catalog totals.
	TTLLong = time.Hour
)

const defaultSweepInterval = 5 * time.Minute

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-process read-through cache with per-entry TTLs.
//
// It is safe for concurrent use. Concurrent GetOrCompute calls for the same
// cold key share a single producer invocation; see the package documentation
// for the full contract.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]entry
	sf        singleflight.Group
	now       func() time.Time
	sweepEach time.Duration
	lastSweep time.Time
	recorder  MetricsRecorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the cache's time source. Tests use this to advance time
// deterministically instead of sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSweepInterval sets how often expired entries are removed from memory.
// The sweep piggybacks on lookups; a zero or negative interval sweeps on
// every lookup.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.sweepEach = d }
}

// WithRecorder injects a metrics backend. The default recorder discards
// everything.
func WithRecorder(rec MetricsRecorder) Option {
	return func(c *Cache) {
		if rec != nil {
			c.recorder = rec
		}
	}
}

// New constructs an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]entry),
		now:       time.Now,
		sweepEach: defaultSweepInterval,
		recorder:  &NoOpMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastSweep = c.now()
	return c
}

// GetOrCompute returns the cached value for key when one is live, and
// otherwise runs producer, stores its result for ttl, and returns it.
//
// Concurrent callers that miss on the same key share one in-flight producer
// call and all receive its result. A producer error is returned unchanged and
// is never cached: the next call for the key runs the producer again.
//
// The cache does not cancel an in-flight producer. Callers inherit whatever
// deadline their own ctx carries; a producer that never returns leaves the
// key cold for new callers until it settles.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		c.recorder.Add("cache.hit", 1, nil)
		return v, nil
	}
	c.recorder.Add("cache.miss", 1, nil)

	v, err, _ := c.sf.Do(key, func() (any, error) {
		// A caller that lost the single-flight race can arrive here after
		// the winner already stored a fresh value; serve that instead of
		// computing again.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl)
		return v, nil
	})
	if err != nil {
		c.recorder.Add("cache.error", 1, nil)
		return nil, err
	}
	return v, nil
}

// Invalidate drops the entry for key, if any. The archive calls this when a
// historian approval changes data that a cached aggregate was built from.
// Invalidating an absent key is a no-op.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes all expired entries. It also runs automatically during
// lookups, at most once per sweep interval.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(c.now())
}

// Len reports the number of stored entries, including expired ones that have
// not been swept yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.sweepEach {
		c.sweepLocked(now)
	}

	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *Cache) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.lastSweep = now
}
