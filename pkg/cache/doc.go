// Package cache provides an in-process read-through cache with per-entry
// TTLs and single-flight stampede control.
//
// The primary entry point is GetOrCompute:
//
//	v, err := c.GetOrCompute(ctx, "featured:homepage", cache.TTLMedium,
//		func(ctx context.Context) (any, error) {
//			return db.FeaturedContracts(ctx)
//		})
//
// A live entry (its TTL has not elapsed) is returned immediately without
// invoking the producer. On a miss the producer runs once, its result is
// stored, and every concurrent caller waiting on the same key receives that
// one result. The deduplication is provided by golang.org/x/sync/singleflight
// and is a hard guarantee of this package: N simultaneous misses on a cold
// key cost exactly one producer call.
//
// # Failure
//
// A producer error propagates to callers unchanged and is never stored, so
// the next GetOrCompute for the key retries from scratch. The cache neither
// catches nor reinterprets producer errors.
//
// # Lifecycle and Memory
//
// Entries are overwritten on recompute and otherwise live until Invalidate
// removes them or a sweep collects them after expiry. The sweep piggybacks
// on lookups at most once per sweep interval, mirroring the limiter package;
// there is no background goroutine. State is process-local and lost on
// restart, which is the accepted tradeoff for the archive's small,
// slow-changing key space.
//
// # Cancellation
//
// GetOrCompute passes the caller's ctx to the producer but does not add its
// own deadline. Losers of the single-flight race wait for the winner's
// producer call even if their own ctx expires first; with the archive's
// request-scoped deadlines this has not been worth the extra machinery of
// singleflight.DoChan.
package cache
