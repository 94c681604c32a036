package limiter

import "time"

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithPrefix sets the Redis key prefix (default "limiter:"). Use it to keep
// counter keys apart when several applications share one Redis instance.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisLimiter) { r.prefix = prefix }
}

// WithTimeout sets the per-operation context timeout for Redis calls
// (default 5s). The same timeout bounds the startup ping and script load.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *RedisLimiter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecorder injects a metrics backend. The default recorder discards
// everything.
func WithRecorder(rec MetricsRecorder) RedisOption {
	return func(r *RedisLimiter) {
		if rec != nil {
			r.recorder = rec
		}
	}
}
