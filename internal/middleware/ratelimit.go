package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type window struct {
	count   int
	started time.Time
}

// RateLimiter is an in-process fixed-window limiter. It keys on the
// authenticated user when one is on the context and on the client address
// otherwise.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(limit int, windowLen time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  windowLen,
		now:     time.Now,
	}
}

// RunCleanup evicts idle entries until ctx is cancelled.
func (rl *RateLimiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, w := range rl.clients {
		if now.Sub(w.started) > rl.window {
			delete(rl.clients, key)
		}
	}
}

// allow records a hit for key and reports whether it is within the limit,
// plus the time until the current window resets.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.started) > rl.window {
		rl.clients[key] = &window{count: 1, started: now}
		return true, rl.window
	}

	w.count++
	return w.count <= rl.limit, rl.window - now.Sub(w.started)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			key = "user:" + userID.String()
		}

		ok, reset := rl.allow(key)
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", fmt.Sprintf("Too many requests. Please try again in %d seconds.", int(reset.Seconds())+1), r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
