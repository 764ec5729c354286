package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// countScript increments the counter and starts the window on the first hit.
// Running both in one script keeps concurrent requests from slipping past the
// limit between the read and the write. A key without expiry is repaired.
var countScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter is a fixed-window request counter per IP and purpose backed by Redis.
// A Limiter without a client allows everything.
type Limiter struct {
	client   *redis.Client
	requests int64
	window   time.Duration
}

// NewLimiter allows requests per window for each IP and purpose.
// client may be nil to disable limiting.
func NewLimiter(client *redis.Client, requests int, window time.Duration) *Limiter {
	return &Limiter{
		client:   client,
		requests: int64(requests),
		window:   window,
	}
}

// Enabled reports whether requests are actually counted
func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil && l.requests > 0 && l.window > 0
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:%s:%s", purpose, ip)
}

// AllowIPRequestWithPurpose counts the request and reports whether it is within
// the limit for ip and purpose. Rejected requests count too, so a client that
// keeps hammering stays blocked until the window ends.
func (l *Limiter) AllowIPRequestWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}

	count, err := countScript.Run(ctx, l.client, []string{ipKey(purpose, ip)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}

	return count <= l.requests, nil
}

// Ping verifies the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
