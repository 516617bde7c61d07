package app

import (
	"context"
	"testing"
	"time"
)

func TestRedisRateLimiter_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "dewbox:rate_limit:contribute:user_1"},
		{prefix: "  custom:limits: ", want: "custom:limits:contribute:user_1"},
	}
	for _, tt := range tests {
		limiter := NewRedisRateLimiter(nil, tt.prefix)
		if got := limiter.Key("contribute", "user_1"); got != tt.want {
			t.Fatalf("Key() with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestRedisRateLimiter_DisabledInputsNeverLimit(t *testing.T) {
	var nilLimiter *RedisRateLimiter
	decision, err := nilLimiter.Allow(context.Background(), "contribute", "user_1", 5, time.Minute)
	if err != nil || !decision.Allowed() || decision.Count != 0 {
		t.Fatalf("nil limiter should be a no-op, got %+v %v", decision, err)
	}

	limiter := NewRedisRateLimiter(nil, "")
	decision, err = limiter.Allow(context.Background(), "contribute", "user_1", 5, time.Minute)
	if err != nil || !decision.Allowed() || decision.Count != 0 {
		t.Fatalf("limiter without a client should be a no-op, got %+v %v", decision, err)
	}
}

func TestRateLimitDecision(t *testing.T) {
	tests := []struct {
		name          string
		decision      RateLimitDecision
		wantAllowed   bool
		wantRemaining int
		wantRetry     int
	}{
		{name: "first request", decision: RateLimitDecision{Count: 1, Limit: 30, ResetIn: 60 * time.Second}, wantAllowed: true, wantRemaining: 29, wantRetry: 60},
		{name: "last allowed", decision: RateLimitDecision{Count: 30, Limit: 30, ResetIn: 1500 * time.Millisecond}, wantAllowed: true, wantRemaining: 0, wantRetry: 2},
		{name: "over the limit", decision: RateLimitDecision{Count: 31, Limit: 30, ResetIn: 41001 * time.Millisecond}, wantAllowed: false, wantRemaining: 0, wantRetry: 42},
		{name: "expired window", decision: RateLimitDecision{Count: 31, Limit: 30}, wantAllowed: false, wantRemaining: 0, wantRetry: 1},
		{name: "no limit", decision: RateLimitDecision{Count: 99}, wantAllowed: true, wantRemaining: 0, wantRetry: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.decision.Allowed(); got != tt.wantAllowed {
				t.Fatalf("Allowed() = %v, want %v", got, tt.wantAllowed)
			}
			if got := tt.decision.Remaining(); got != tt.wantRemaining {
				t.Fatalf("Remaining() = %d, want %d", got, tt.wantRemaining)
			}
			if got := tt.decision.RetryAfterSeconds(); got != tt.wantRetry {
				t.Fatalf("RetryAfterSeconds() = %d, want %d", got, tt.wantRetry)
			}
		})
	}
}
