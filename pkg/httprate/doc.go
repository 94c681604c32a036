// Package httprate adapts the limiter package to net/http.
//
// Middleware extracts a client identity from the request, asks a
// limiter.RateLimiter for a decision, and translates it into rate-limit
// headers plus a 429 short-circuit:
//
//	mw := httprate.Middleware(l,
//		limiter.Limit{MaxRequests: 30, Window: time.Minute},
//		httprate.WithNamespace("search"),
//	)
//	mux.Handle("/search", mw(searchHandler))
//
// The middleware itself holds no state; all counting lives in the limiter,
// so the same backend can sit behind any number of routes with different
// namespaces and limits.
package httprate
