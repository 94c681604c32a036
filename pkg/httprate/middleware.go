package httprate

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereumhistory/requestguard/pkg/limiter"
)

// KeyFunc extracts a rate limiting key from a request.
type KeyFunc func(r *http.Request) string

// OnErrorFunc handles a limiter backend error. It decides whether the
// request proceeds.
type OnErrorFunc func(w http.ResponseWriter, r *http.Request, next http.Handler, err error)

type options struct {
	namespace limiter.Namespace
	keyFn     KeyFunc
	onError   OnErrorFunc
	message   string
}

// Option configures the middleware.
type Option func(*options)

// WithNamespace scopes the limit to a route group (for example "search"), so
// one client identity gets an independent window per route. Default "ip".
func WithNamespace(ns limiter.Namespace) Option {
	return func(o *options) { o.namespace = ns }
}

// WithKeyFunc sets a custom key extraction function.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) { o.keyFn = fn }
}

// WithOnError sets a custom handler for limiter backend errors. The default
// fails open: the request is served as if it had been allowed.
func WithOnError(fn OnErrorFunc) Option {
	return func(o *options) { o.onError = fn }
}

// WithMessage overrides the error string in the 429 JSON body.
func WithMessage(msg string) Option {
	return func(o *options) { o.message = msg }
}

// DefaultKeyFunc extracts the client identity from the request: the first
// comma-separated value of X-Forwarded-For, trimmed; otherwise the host part
// of RemoteAddr; otherwise the literal "unknown".
//
// X-Forwarded-For is spoofable when the service is not behind a trusted
// proxy. The archive always runs behind one, so the header is trusted here;
// deployments that are not should install their own KeyFunc.
func DefaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

type limitedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// Middleware wraps a handler with a rate limit check.
//
// Allowed requests are served with X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset (unix seconds) set; the wrapped handler's status and
// body are untouched. Denied requests short-circuit with 429, the same
// headers (Remaining=0), a Retry-After header in whole seconds, and a JSON
// body carrying the same retryAfter value.
func Middleware(l limiter.RateLimiter, limit limiter.Limit, opts ...Option) func(next http.Handler) http.Handler {
	o := &options{
		namespace: "ip",
		keyFn:     DefaultKeyFunc,
		onError: func(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
			// Fail open: a broken limiter backend must not take the
			// archive down with it.
			next.ServeHTTP(w, r)
		},
		message: "Too many requests, please slow down and try again later",
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := limiter.Identity{Namespace: o.namespace, Key: o.keyFn(r)}

			dec, err := l.Allow(r.Context(), id, limit)
			if err != nil {
				o.onError(w, r, next, err)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(limit.MaxRequests, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetTime.Unix(), 10))

			if !dec.Allow {
				retryAfter := int(math.Ceil(dec.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(limitedResponse{
					Error:      o.message,
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
