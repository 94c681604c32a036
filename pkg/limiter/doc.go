// Package limiter provides local and distributed rate limiting based on a
// fixed-window counter.
//
// The primary entry point is the RateLimiter interface:
//
//	dec, err := limiter.Allow(ctx, id, limit)
//
// The returned Decision contains whether the request is allowed, how many
// requests remain in the current window, and timing hints for callers that
// want to set rate-limit headers (for example, Retry-After).
//
// # Overview
//
// This package implements a fixed window:
//
//   - Each identity has a counter and an absolute reset time.
//   - The first request for an identity, or the first request after the reset
//     time has passed, starts a fresh window of Limit.Window duration with a
//     count of 1.
//   - Every subsequent request inside the window increments the counter; the
//     request is allowed while the counter is at or below Limit.MaxRequests.
//
// The counter is not clamped: it keeps incrementing past MaxRequests for as
// long as the window stays open. Only the derived Decision fields (Allow,
// Remaining) are clamped. The whole window resets atomically at ResetTime, so
// a burst straddling a window boundary can momentarily see up to twice the
// nominal rate. That generous boundary behavior is a documented
// characteristic of this package, not a defect; callers that need a strict
// long-term average should apply a smaller window rather than expect
// token-bucket smoothing here.
//
// # Core Types
//
// Limit defines the policy:
//
//   - MaxRequests: requests allowed per window (for example, 60)
//   - Window: the window duration (for example, time.Minute)
//
// Identity defines "who" is being rate-limited. It is split into:
//
//   - Namespace: a logical grouping (for example, "ip", "search", "agent")
//   - Key: the identifier within that namespace (for example, "203.0.113.9")
//
// # Backends
//
// The package provides two implementations with the same Allow API:
//
//   - MemoryLimiter: an in-process limiter backed by a Go map. This is useful
//     for unit tests, local development, and single-instance deployments.
//     Because its state is local to the process, it does not enforce a global
//     limit across multiple replicas; each replica bounds its own share of
//     the traffic, which is the accepted tradeoff for the archive's
//     deployment.
//
//   - RedisLimiter: a distributed limiter backed by Redis. It uses a Lua
//     script to perform the increment-and-expire cycle atomically, which
//     makes it safe to use across many application instances while enforcing
//     a single global budget per identity.
//
// # Concurrency
//
// MemoryLimiter is safe for concurrent use by multiple goroutines (it uses a
// mutex to protect its internal map and per-identity state). RedisLimiter
// delegates concurrency safety to Redis and the go-redis client.
//
// # Memory
//
// MemoryLimiter sweeps expired windows lazily: at most once per sweep
// interval (default 5 minutes), an Allow call deletes every entry whose
// reset time has passed. There is no background goroutine; a process that
// stops receiving requests simply stops sweeping, which is a memory-bound
// rather than correctness-bound concern. Sweep can also be called directly
// when the application prefers to drive cleanup from its own timer.
// RedisLimiter needs no sweep at all: counter keys expire server-side with
// their window.
//
// # Context and Error Policy
//
// Allow accepts a context.Context. RedisLimiter passes this context through
// to Redis operations so callers can enforce deadlines and cancel work to
// avoid cascading failures during partial outages. MemoryLimiter never
// blocks and never returns an error.
//
// This package does not impose a "fail open" vs "fail closed" policy. If
// Redis is unavailable or the context expires, Allow returns a non-nil error
// and the caller decides whether to deny traffic (protect the backend) or
// allow traffic (maximize availability). The httprate middleware in this
// module fails open by default.
//
// # Decision Semantics
//
// Decision fields are intended to be directly consumable by application code:
//
//   - Allow reports whether the current request is permitted.
//   - Remaining is the number of requests left in the window after this one,
//     floored at 0.
//   - RetryAfter is 0 when allowed; when denied it is the duration until the
//     window resets.
//   - ResetTime is the absolute timestamp at which a fresh window starts.
//
// # Testing
//
// MemoryLimiter takes an injectable clock (WithClock), so tests advance time
// with a variable instead of sleeping. For a runnable example see
// ExampleMemoryLimiter in example_test.go.
//
// # Configuration
//
// RedisLimiter is configured using the Functional Options pattern:
//
//	limiter, _ := NewRedisLimiter(client,
//		WithPrefix("archive:rate:"),
//		WithTimeout(2*time.Second),
//		WithRecorder(myMetrics),
//	)
//
// Supported options:
//
//   - WithPrefix(string): Sets the key prefix (default "limiter:").
//   - WithTimeout(time.Duration): Sets the context timeout for Redis
//     operations (default 5s).
//   - WithRecorder(MetricsRecorder): Injects a custom metrics backend.
package limiter
