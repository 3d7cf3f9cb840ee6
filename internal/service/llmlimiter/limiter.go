// Package llmlimiter throttles calls to the LLM provider with a token bucket
// shared across processes via redis. The bucket is advisory: on any redis
// trouble the limiter fails open and lets the provider's own rate limiting be
// the backstop.
package llmlimiter

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxos/assistant-core/internal/domain"
)

// DefaultMaxWait bounds how long Wait blocks before letting the call through.
const DefaultMaxWait = 5 * time.Second

const luaTokenBucket = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
elseif refill_rate > 0 then
  retry_after = (1 - tokens) / refill_rate
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", now)

-- redis truncates returned lua numbers to integers; keep the fraction
return { allowed, tostring(retry_after) }
`

// Limiter is one shared bucket for one provider. A nil *Limiter is a no-op,
// so callers can wire it unconditionally.
type Limiter struct {
	rdb     *redis.Client
	key     string
	rate    float64
	burst   int
	maxWait time.Duration
	script  *redis.Script
}

// New builds a limiter over rdb. rate is tokens per second, burst the bucket
// capacity. Returns nil when rdb is nil or the knobs disable throttling.
func New(rdb *redis.Client, name string, rate float64, burst int) *Limiter {
	if rdb == nil || rate <= 0 || burst <= 0 {
		return nil
	}
	return &Limiter{
		rdb:     rdb,
		key:     "throttle:" + name,
		rate:    rate,
		burst:   burst,
		maxWait: DefaultMaxWait,
		script:  redis.NewScript(luaTokenBucket),
	}
}

// Allow takes one token. When the bucket is empty it reports false with the
// delay until a token refills. Redis errors report allowed.
func (l *Limiter) Allow(ctx domain.Context) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	nowSec := float64(time.Now().UnixNano()) / 1e9
	res, err := l.script.Run(ctx, l.rdb, []string{l.key}, l.burst, l.rate, nowSec).Result()
	if err != nil {
		slog.Warn("throttle script failed, allowing call",
			slog.String("key", l.key), slog.Any("error", err))
		return true, 0, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return true, 0, nil
	}
	allowed := asInt64(vals[0]) == 1
	retryAfter := time.Duration(asFloat64(vals[1]) * float64(time.Second))
	return allowed, retryAfter, nil
}

// Wait blocks until a token is available, the wait budget runs out, or ctx is
// done. Running out of budget lets the call proceed; only ctx cancellation is
// an error.
func (l *Limiter) Wait(ctx domain.Context) error {
	if l == nil {
		return nil
	}
	deadline := time.Now().Add(l.maxWait)
	for {
		allowed, retryAfter, err := l.Allow(ctx)
		if err != nil || allowed {
			return nil
		}
		if retryAfter <= 0 || time.Now().Add(retryAfter).After(deadline) {
			slog.Debug("throttle wait budget exhausted, proceeding",
				slog.String("key", l.key), slog.Duration("retry_after", retryAfter))
			return nil
		}
		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("op=llmlimiter.Wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
