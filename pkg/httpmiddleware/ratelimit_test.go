package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_UnderLimit(t *testing.T) {
	cfg := RateLimitConfig{
		Max:    5,
		Window: time.Minute,
	}
	handler := RateLimit(cfg)(okHandler())

	for i := range 5 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	cfg := RateLimitConfig{
		Max:    2,
		Window: time.Minute,
	}
	handler := RateLimit(cfg)(okHandler())

	// Exhaust the limit.
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Next request should be rate limited.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	cfg := RateLimitConfig{
		Max:    1,
		Window: time.Minute,
	}
	handler := RateLimit(cfg)(okHandler())

	// First IP should succeed.
	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)

	// Second IP should also succeed (independent limit).
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)

	// First IP again should be rate limited.
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.RemoteAddr = "10.0.0.1:5678"
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
}

func TestRateLimit_Headers(t *testing.T) {
	cfg := RateLimitConfig{
		Max:    10,
		Window: time.Minute,
	}
	handler := RateLimit(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:4444"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	cfg := RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Session-ID")
		},
	}
	handler := RateLimit(cfg)(okHandler())

	// First key succeeds.
	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.Header.Set("X-Session-ID", "alice")
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)

	// Same key gets limited.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("X-Session-ID", "alice")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)

	// Different key succeeds.
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.Header.Set("X-Session-ID", "bob")
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusOK, w3.Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	cfg := RateLimitConfig{
		Max:    1,
		Window: time.Minute,
	}
	handler := RateLimit(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Same X-Forwarded-For first IP should be limited.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "192.168.1.2:5555" // different RemoteAddr
	req2.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestWindowLimiter_Cleanup(t *testing.T) {
	rl := NewWindowLimiter(1, time.Minute)
	start := time.Now()

	d, err := rl.Allow(context.Background(), "a", start)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = rl.Allow(context.Background(), "a", start.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	require.Equal(t, 1, rl.Len())

	rl.Cleanup(start.Add(time.Minute))
	assert.Equal(t, 1, rl.Len(), "entry still inside two windows")

	rl.Cleanup(start.Add(3 * time.Minute))
	assert.Zero(t, rl.Len())
}

func TestWindowLimiter_SlidesIntoNextWindow(t *testing.T) {
	rl := NewWindowLimiter(2, time.Minute)
	start := time.Now().Truncate(time.Minute)
	ctx := context.Background()

	for range 2 {
		d, err := rl.Allow(ctx, "k", start)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// Halfway through the next window the previous one still counts for one.
	d, err := rl.Allow(ctx, "k", start.Add(90*time.Second))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = rl.Allow(ctx, "k", start.Add(90*time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

type limiterFunc func(ctx context.Context, key string, now time.Time) (Decision, error)

func (f limiterFunc) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	return f(ctx, key, now)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Limiter: limiterFunc(func(context.Context, string, time.Time) (Decision, error) {
			return Decision{}, errors.New("redis down")
		}),
	})(okHandler())

	for range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

type fakeEvaler struct {
	keys  []string
	args  []any
	reply []any
	err   error
}

func (f *fakeEvaler) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.keys = keys
	f.args = args
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(f.reply)
	return cmd
}

func TestRedisLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name      string
		reply     []any
		err       error
		allowed   bool
		remaining int
		wantErr   bool
	}{
		{name: "allowed", reply: []any{int64(1), int64(9)}, allowed: true, remaining: 9},
		{name: "denied", reply: []any{int64(0), int64(0)}, allowed: false, remaining: 0},
		{name: "redis error", err: errors.New("connection refused"), wantErr: true},
		{name: "short reply", reply: []any{int64(1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &fakeEvaler{reply: tt.reply, err: tt.err}
			l := NewRedisLimiter(ev, "academy:ratelimit:", 10, 10*time.Second)

			d, err := l.Allow(context.Background(), "10.0.0.1", now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"academy:ratelimit:10.0.0.1"}, ev.keys)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.remaining, d.Remaining)
			// One token per second refills the missing ones.
			assert.Equal(t, now.Add(time.Duration(10-tt.remaining)*time.Second), d.ResetAt)
		})
	}
}
