package httpmiddleware

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills the bucket stored at KEYS[1] and takes one token.
// It returns {allowed, tokens left rounded down}.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1])
local last = tonumber(bucket[2])
if tokens == nil then
	tokens = capacity
	last = now
end

local elapsed = math.max(0, now - last) / 1000000000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('EXPIRE', key, ttl)
return {allowed, math.floor(tokens)}
`

// RedisEvaler runs Lua scripts.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLimiter is a token bucket Limiter shared by every instance using the
// same Redis. The bucket holds limit tokens and refills limit per window.
type RedisLimiter struct {
	client RedisEvaler
	prefix string
	max    int
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter stores buckets under prefix+key.
func NewRedisLimiter(client RedisEvaler, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, max: limit, window: window}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	rate := float64(l.max) / l.window.Seconds()
	ttl := int(math.Ceil(2 * l.window.Seconds()))

	res, err := l.client.Eval(ctx, tokenBucketScript, []string{l.prefix + key},
		l.max, rate, now.UnixNano(), ttl,
	).Int64Slice()
	if err != nil {
		return Decision{}, errors.Wrap(err, "eval token bucket")
	}
	if len(res) != 2 {
		return Decision{}, errors.Errorf("unexpected token bucket reply %v", res)
	}

	remaining := int(res[1])
	// Time until the bucket is full again.
	missing := float64(l.max - remaining)
	return Decision{
		Allowed:   res[0] == 1,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(missing / rate * float64(time.Second))),
	}, nil
}
