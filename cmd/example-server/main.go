package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ethereumhistory/requestguard/pkg/cache"
	"github.com/ethereumhistory/requestguard/pkg/httprate"
	"github.com/ethereumhistory/requestguard/pkg/limiter"
	"github.com/redis/go-redis/v9"
)

// A miniature slice of the archive's routes, wired the way the real web
// handlers consume the limiter and cache.
func main() {
	var l limiter.RateLimiter
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		rl, err := limiter.NewRedisLimiter(client,
			limiter.WithPrefix("archive:rate:"),
			limiter.WithTimeout(100*time.Millisecond),
		)
		if err != nil {
			log.Fatal(err)
		}
		l = rl
		log.Printf("Using Redis limiter at %s", redisAddr)
	} else {
		l = limiter.NewMemoryLimiter()
		log.Print("REDIS_ADDR not set, using in-process limiter")
	}

	c := cache.New()
	mux := http.NewServeMux()

	// Catalog lookups: generous per-IP budget.
	pageLimit := httprate.Middleware(l, limiter.Limit{MaxRequests: 120, Window: time.Minute})
	mux.Handle("/contracts/", pageLimit(http.HandlerFunc(contractHandler)))

	// Search is the expensive route; it gets a tighter, separately-counted
	// window per client.
	searchLimit := httprate.Middleware(l,
		limiter.Limit{MaxRequests: 30, Window: time.Minute},
		httprate.WithNamespace("search"),
	)
	mux.Handle("/search", searchLimit(http.HandlerFunc(searchHandler(c))))

	// Homepage aggregate: cached so the slow query runs at most once per
	// TTL no matter how hot the page is.
	mux.Handle("/featured", pageLimit(http.HandlerFunc(featuredHandler(c))))

	log.Print("Server listening on :8080")
	log.Fatal(http.ListenAndServe(":8080", mux))
}

func contractHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Path[len("/contracts/"):]
	writeJSON(w, map[string]any{
		"address":  address,
		"deployed": "2015-08-07T15:12:22Z",
		"summary":  "One of the earliest contracts on the chain.",
	})
}

func searchHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		v, err := c.GetOrCompute(r.Context(), "search:"+q, cache.TTLShort,
			func(ctx context.Context) (any, error) {
				return slowQuery(ctx, "matches for "+q)
			})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"query": q, "results": v})
	}
}

func featuredHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := c.GetOrCompute(r.Context(), "featured:homepage", cache.TTLMedium,
			func(ctx context.Context) (any, error) {
				return slowQuery(ctx, "featured contracts")
			})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"featured": v})
	}
}

// slowQuery stands in for the database aggregations the real archive runs.
func slowQuery(ctx context.Context, result string) (any, error) {
	select {
	case <-time.After(200 * time.Millisecond):
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
