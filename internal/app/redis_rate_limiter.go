/**
 * @description
 * Redis-backed cap on advance requests per user. The counter lives in Redis
 * so the cap holds across service instances; the limit decision is made in a
 * Lua script so increment, expiry and comparison are atomic.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// advanceRequestScript counts a hit against the window and decides in one
// round trip. Returns {1, 0} while within the limit, {0, ttl_ms} once over.
var advanceRequestScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if hits <= tonumber(ARGV[1]) then
  return {1, 0}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end
return {0, ttl}
`)

const advanceRateLimitKeyPrefix = "perch:rate_limit:advance_request:"

// AdvanceRateLimiter caps how many advance requests a user may make within a
// rolling window.
type AdvanceRateLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
}

// NewAdvanceRateLimiter builds a limiter allowing `limit` requests per
// `window`. A non-positive window falls back to one hour.
func NewAdvanceRateLimiter(client redis.UniversalClient, limit int, window time.Duration) *AdvanceRateLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &AdvanceRateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the subject may make another advance request now.
// When denied, retryAfterSeconds says how long until the window resets.
func (l *AdvanceRateLimiter) Allow(ctx context.Context, subject string) (allowed bool, retryAfterSeconds int, err error) {
	subject = strings.TrimSpace(subject)
	if l == nil || l.client == nil || l.limit <= 0 || subject == "" {
		return true, 0, nil
	}

	windowMs := l.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := advanceRateLimitKeyPrefix + subject
	rawResult, err := advanceRequestScript.Run(ctx, l.client, []string{key}, l.limit, windowMs).Result()
	if err != nil {
		return true, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return true, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}
	withinLimit, ok := values[0].(int64)
	if !ok {
		return true, 0, fmt.Errorf("unexpected redis limiter flag type: %T", values[0])
	}
	if withinLimit == 1 {
		return true, 0, nil
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	retryAfter := int((ttlMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}
