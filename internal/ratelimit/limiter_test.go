package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(client, requests, window), mr
}

func TestLimiter_BlocksAfterLimit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_ConcurrentBurstStaysWithinLimit(t *testing.T) {
	ctx := context.Background()
	const limit = 5
	l, _ := newTestLimiter(t, limit, time.Minute)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "register")
			if err == nil && ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}

func TestLimiter_SeparatesPurposeAndIP(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	allowed, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "register")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.AllowIPRequestWithPurpose(ctx, "10.0.0.2", "login")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_WindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)

	_, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "contact")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:contact:10.0.0.1"))

	allowed, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "contact")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:contact:10.0.0.1"), "later hits do not extend the window")

	mr.FastForward(time.Minute + time.Second)

	allowed, err = l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "contact")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_RepairsKeyWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 5, time.Minute)

	require.NoError(t, mr.Set("ratelimit:login:10.0.0.1", "2"))

	_, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:login:10.0.0.1"))
}

func TestLimiter_Disabled(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(nil, 1, time.Minute)

	assert.False(t, l.Enabled())
	for i := 0; i < 3; i++ {
		allowed, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLimiter_RedisDown(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := l.AllowIPRequestWithPurpose(ctx, "10.0.0.1", "login")
	assert.Error(t, err)
}
