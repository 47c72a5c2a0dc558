package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
	// Limiter decides requests. If nil, an in-memory sliding window is used.
	Limiter Limiter
}

// Decision is the result of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// entry tracks request counts across two adjacent windows for the sliding
// window algorithm.
type entry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// WindowLimiter is an in-memory sliding window Limiter.
type WindowLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

var _ Limiter = (*WindowLimiter)(nil)

// NewWindowLimiter allows limit requests per window and key.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		max:     limit,
		window:  window,
		entries: make(map[string]*entry),
	}
}

// Allow implements Limiter. It never fails.
func (rl *WindowLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok {
		e = &entry{currStart: now}
		rl.entries[key] = e
	}

	// Rotate window if the current window has elapsed.
	if now.Sub(e.currStart) >= rl.window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(rl.window)
		if now.Sub(e.prevStart) >= 2*rl.window {
			e.prevCount = 0
		}
	}

	// Weight the previous window by its overlap with the sliding window.
	elapsed := now.Sub(e.currStart)
	overlap := max(0, 1.0-elapsed.Seconds()/rl.window.Seconds())
	effective := e.prevCount*overlap + e.currCount
	d := Decision{ResetAt: e.currStart.Add(rl.window)}

	if effective >= float64(rl.max) {
		return d, nil
	}

	e.currCount++
	effective++
	d.Allowed = true
	d.Remaining = max(0, int(float64(rl.max)-effective))
	return d, nil
}

// Cleanup removes entries whose windows have fully expired.
func (rl *WindowLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.entries {
		if now.Sub(e.currStart) >= 2*rl.window {
			delete(rl.entries, key)
		}
	}
}

// Len returns the number of tracked keys.
func (rl *WindowLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// startCleanup evicts expired entries every two windows until ctx is done.
func (rl *WindowLimiter) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.Cleanup(now)
			}
		}
	}()
}

// RateLimit returns a middleware that enforces a per-key rate limit. When the
// limit is exceeded, it responds with 429 Too Many Requests and a JSON body.
// Every response includes X-RateLimit-Limit, X-RateLimit-Remaining, and
// X-RateLimit-Reset headers.
//
// The default in-memory limiter is never cleaned up. Use RateLimitWithCleanup
// for long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		cfg.Limiter = NewWindowLimiter(cfg.Max, cfg.Window)
	}
	return rateLimitMiddleware(cfg)
}

// RateLimitWithCleanup is like RateLimit but evicts expired in-memory entries
// every two windows until ctx is cancelled. Other limiters expire keys
// themselves.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		wl := NewWindowLimiter(cfg.Max, cfg.Window)
		wl.startCleanup(ctx)
		cfg.Limiter = wl
	}
	return rateLimitMiddleware(cfg)
}

func rateLimitMiddleware(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaultKeyFunc
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r), now)
			if err != nil {
				// Fail open: a broken limiter backend must not take the API down.
				zctx.From(r.Context()).Warn("Rate limiter failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := max(0, d.ResetAt.Sub(now))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				var e jx.Encoder
				e.ObjStart()
				e.FieldStart("code")
				e.Int(http.StatusTooManyRequests)
				e.FieldStart("message")
				e.Str("rate limit exceeded")
				e.ObjEnd()
				_, _ = w.Write(e.Bytes())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// defaultKeyFunc extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func defaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may contain a comma-separated list; use the first.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
