package llmlimiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, rate float64, burst int) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "llm", rate, burst)
}

func TestAllow_BurstThenEmpty(t *testing.T) {
	l := newLimiter(t, 1, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := l.Allow(ctx)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should pass within burst", i)
	}

	allowed, retryAfter, err := l.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestAllow_Refills(t *testing.T) {
	l := newLimiter(t, 100, 1) // 100 tokens/s refills within 10ms
	ctx := context.Background()

	allowed, _, err := l.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _ = l.Allow(ctx)
	require.False(t, allowed)

	time.Sleep(50 * time.Millisecond)
	allowed, _, err = l.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWait_BlocksForRefill(t *testing.T) {
	l := newLimiter(t, 50, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx)) // burst token
	start := time.Now()
	require.NoError(t, l.Wait(ctx)) // waits ~20ms for refill
	assert.Less(t, time.Since(start), DefaultMaxWait)
}

func TestWait_BudgetExhaustedFailsOpen(t *testing.T) {
	l := newLimiter(t, 0.001, 1) // next token ~1000s away
	l.maxWait = 20 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx)) // cannot wait 1000s, proceeds
	assert.Less(t, time.Since(start), time.Second)
}

func TestFailOpenOnRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := New(rdb, "llm", 1, 1)
	mr.Close()

	allowed, _, err := l.Allow(context.Background())
	assert.Error(t, err)
	assert.True(t, allowed)
	assert.NoError(t, l.Wait(context.Background()))
}

func TestNilLimiterIsNoop(t *testing.T) {
	var l *Limiter
	allowed, _, err := l.Allow(context.Background())
	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, l.Wait(context.Background()))
}
