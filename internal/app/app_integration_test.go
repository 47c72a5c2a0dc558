//go:build integration

package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedisURL(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

// Two instances behind one Redis share carts and the rate limit budget.
func TestRun_SharedRedis(t *testing.T) {
	redisURL := startRedisURL(t)
	instance := func() *client {
		cfg := testConfig(t)
		cfg.RedisURL = redisURL
		cfg.Storage.Driver = DriverRedis
		cfg.RateLimit.Backend = DriverRedis
		return start(t, cfg)
	}
	west, east := instance(), instance()

	resp, _ := west.do(http.MethodPost, "/api/cart/items", "carol", `{"courseId":3}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, body := east.do(http.MethodGet, "/api/cart", "carol", "")
	assert.Contains(t, body, `"totalLabel":"R1499"`)

	// East now holds a live session; the change feed refreshes it.
	resp, _ = west.do(http.MethodPost, "/api/cart/items", "carol", `{"courseId":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Eventually(t, func() bool {
		_, body := east.do(http.MethodGet, "/api/cart", "carol", "")
		return strings.Contains(body, `"totalLabel":"R1998"`)
	}, 5*time.Second, 50*time.Millisecond)

	resp, _ = east.do(http.MethodDelete, "/api/cart", "carol", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool {
		_, body := west.do(http.MethodGet, "/api/cart", "carol", "")
		return strings.Contains(body, `"empty":true`)
	}, 5*time.Second, 50*time.Millisecond)
}
