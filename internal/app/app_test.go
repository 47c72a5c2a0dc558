package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := validConfig()
	cfg.Addr = freeAddr(t)
	cfg.Payment = PaymentConfig{Delay: 10 * time.Millisecond, SuccessRate: 1}
	cfg.Session = SessionConfig{TTL: time.Minute, Interval: time.Minute, Max: 1000}
	cfg.RateLimit.Max = 1000
	cfg.RateLimit.Window = time.Minute
	cfg.CORS.Origins = []string{"*"}
	cfg.Graceful = GracefulConfig{ShutdownTimeout: 5 * time.Second}
	return &cfg
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

// start runs the server until the test ends and waits for readiness.
func start(t *testing.T, cfg *Config) *client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, zaptest.NewLogger(t), noopTelemetry{}, cfg) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	c := &client{t: t, base: "http://" + cfg.Addr, http: &http.Client{Timeout: 5 * time.Second}}
	require.Eventually(t, func() bool {
		resp, err := c.http.Get(c.base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 20*time.Millisecond)
	return c
}

func (c *client) do(method, path, session, body string, header ...string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(data)
}

func TestRun_Probes(t *testing.T) {
	c := start(t, testConfig(t))

	resp, body := c.do(http.MethodGet, "/livez", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, body = c.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRun_Middleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Max = 20
	c := start(t, cfg)

	resp, _ := c.do(http.MethodGet, "/api/courses", "", "")
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36, "generated")

	resp, _ = c.do(http.MethodGet, "/api/courses", "", "", "X-Request-ID", "custom-request-id-12345")
	assert.Equal(t, "custom-request-id-12345", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "20", resp.Header.Get("X-RateLimit-Limit"))

	resp, _ = c.do(http.MethodOptions, "/api/cart/items", "", "",
		"Origin", "https://academy.example",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-Session-ID")

	// Readiness polling shares the budget, so drain whatever is left.
	var body string
	for range cfg.RateLimit.Max + 1 {
		resp, body = c.do(http.MethodGet, "/api/courses", "", "")
		if resp.StatusCode == http.StatusTooManyRequests {
			break
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, body)
}

func TestRun_Checkout(t *testing.T) {
	c := start(t, testConfig(t))

	resp, body := c.do(http.MethodGet, "/api/courses?level=beginner", "alice", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"title":"AI Trading Fundamentals"`)

	resp, _ = c.do(http.MethodPost, "/api/cart/items", "alice", `{"courseId":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = c.do(http.MethodPost, "/api/cart/items", "alice", `{"courseId":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Sessions are isolated.
	_, body = c.do(http.MethodGet, "/api/cart", "bob", "")
	assert.Contains(t, body, `"empty":true`)

	_, body = c.do(http.MethodGet, "/api/checkout", "alice", "")
	assert.Contains(t, body, `"subtotal":1398`)
	assert.Contains(t, body, `"tax":209.7`)
	assert.Contains(t, body, `"totalLabel":"R1607.70"`)

	resp, _ = c.do(http.MethodPut, "/api/checkout/method", "alice", `{"method":"PayFast"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = c.do(http.MethodPost, "/api/checkout/submit", "alice", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, body := c.do(http.MethodGet, "/api/checkout", "alice", "")
		return strings.Contains(body, `"phase":"succeeded"`)
	}, 5*time.Second, 20*time.Millisecond)

	_, body = c.do(http.MethodGet, "/api/cart", "alice", "")
	assert.Contains(t, body, `"empty":true`)

	_, body = c.do(http.MethodGet, "/api/orders", "alice", "")
	assert.Contains(t, body, `"method":"payfast"`)
	assert.Contains(t, body, `"total":1607.7`)
}
