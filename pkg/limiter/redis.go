package limiter

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowScript string

// RedisLimiter is a distributed fixed-window rate limiter backed by Redis.
//
// The increment-and-expire cycle runs inside a Lua script, so concurrent
// replicas observe one shared counter per identity and window. Counter keys
// carry a TTL equal to the window, which doubles as garbage collection:
// identities that stop sending requests disappear from Redis on their own.
type RedisLimiter struct {
	client    *redis.Client
	scriptSHA string
	prefix    string
	timeout   time.Duration
	recorder  MetricsRecorder
}

// NewRedisLimiter pings the server and preloads the window script. It returns
// an error when Redis is unreachable so callers can fall back to a
// MemoryLimiter at startup rather than discovering the outage per request.
func NewRedisLimiter(client *redis.Client, opts ...RedisOption) (*RedisLimiter, error) {
	r := &RedisLimiter{
		client:   client,
		prefix:   "limiter:",
		timeout:  5 * time.Second,
		recorder: &NoOpMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	sha, err := client.ScriptLoad(ctx, fixedWindowScript).Result()
	if err != nil {
		return nil, err
	}
	r.scriptSHA = sha

	return r, nil
}

// Allow checks whether a request for the given identity should be allowed
// under the provided limit. The semantics match MemoryLimiter: a fixed window
// whose counter keeps incrementing past MaxRequests, with Allow and Remaining
// derived from the clamped comparison.
func (r *RedisLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	key := r.prefix + string(id.Namespace) + ":" + id.Key

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := r.eval(ctx, key, limit)
	r.recorder.Add("ratelimit.call", 1, nil)
	r.recorder.Observe("ratelimit.latency", time.Since(start).Seconds(), nil)
	if err != nil {
		return Decision{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, errors.New("invalid lua response format")
	}

	allowedVal, _ := values[0].(int64)
	remainingVal, _ := values[1].(int64)
	ttlMillis, _ := values[2].(int64)

	now := time.Now()
	dec := Decision{
		Allow:     allowedVal == 1,
		Remaining: remainingVal,
		ResetTime: now.Add(time.Duration(ttlMillis) * time.Millisecond),
	}
	if dec.Allow {
		r.recorder.Add("ratelimit.allowed", 1, nil)
	} else {
		dec.RetryAfter = time.Duration(ttlMillis) * time.Millisecond
		r.recorder.Add("ratelimit.denied", 1, nil)
	}
	return dec, nil
}

func (r *RedisLimiter) eval(ctx context.Context, key string, limit Limit) (interface{}, error) {
	args := []interface{}{
		limit.MaxRequests,           // ARGV[1]
		limit.Window.Milliseconds(), // ARGV[2]
	}

	result, err := r.client.EvalSha(ctx, r.scriptSHA, []string{key}, args...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		// Script cache was flushed (e.g. Redis restart); fall back to a
		// full EVAL, which also repopulates the cache.
		result, err = r.client.Eval(ctx, fixedWindowScript, []string{key}, args...).Result()
	}
	return result, err
}
