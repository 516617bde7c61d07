package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "dewbox:rate_limit"

// windowScript opens the window with its expiry on first use, then counts the request.
// It returns the new count and the milliseconds left in the window.
var windowScript = redis.NewScript(`
redis.call("SET", KEYS[1], 0, "PX", ARGV[1], "NX")
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RateLimitDecision is a subject's window after counting one request.
type RateLimitDecision struct {
	Count   int
	Limit   int
	ResetIn time.Duration
}

// Allowed reports whether the counted request fits in the window. A non-positive limit
// never limits.
func (d RateLimitDecision) Allowed() bool {
	return d.Limit <= 0 || d.Count <= d.Limit
}

func (d RateLimitDecision) Remaining() int {
	if d.Limit <= 0 || d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// RetryAfterSeconds rounds ResetIn up to whole seconds, at least 1.
func (d RateLimitDecision) RetryAfterSeconds() int {
	secs := int((d.ResetIn + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// RedisRateLimiter counts contribution requests per scope and subject in fixed windows
// shared by every replica.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = defaultRateLimitPrefix
	}
	return &RedisRateLimiter{client: client, prefix: trimmed}
}

// Allow counts one request for subject. Without a client, a limit, a window, or a subject
// nothing is counted and the request is allowed.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (RateLimitDecision, error) {
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if r == nil || r.client == nil || limit <= 0 || window <= 0 || scope == "" || subject == "" {
		return RateLimitDecision{}, nil
	}
	if window < time.Second {
		window = time.Second
	}

	raw, err := windowScript.Run(ctx, r.client, []string{r.Key(scope, subject)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	if len(raw) != 2 {
		return RateLimitDecision{}, fmt.Errorf("rate limit %s: unexpected reply of %d values", scope, len(raw))
	}

	return RateLimitDecision{
		Count:   int(raw[0]),
		Limit:   limit,
		ResetIn: time.Duration(raw[1]) * time.Millisecond,
	}, nil
}

func (r *RedisRateLimiter) Key(scope, subject string) string {
	return r.prefix + ":" + scope + ":" + subject
}
