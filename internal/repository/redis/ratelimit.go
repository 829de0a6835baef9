package redis

import (
	"context"
	"fmt"
	"time"
)

const rateLimitPrefix = "oneonone:ratelimit:"

// RateLimiter is a fixed one-minute window counter per key
type RateLimiter struct {
	client            *Client
	messagesPerMinute int
	burst             int
}

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, messagesPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		messagesPerMinute: messagesPerMinute,
		burst:             burst,
	}
}

// Allow counts one message for key in the current window
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	fullKey := rateLimitPrefix + key
	windowEnd := time.Now().Truncate(time.Minute).Add(time.Minute)

	pipe := r.client.rdb.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	limit := int64(r.messagesPerMinute + r.burst)
	count := incr.Val()
	remaining := int(limit - count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   windowEnd,
	}, nil
}
