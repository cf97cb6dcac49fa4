// Package ratelimit throttles repeated failed logins per email address.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/BlogGo/pkg/errors"
)

const keyPrefix = "login_failures:"

// recordFailure increments the counter and gives it the window TTL whenever
// it has none, so a counter can never outlive its window.
var recordFailure = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Limiter tracks failed login attempts.
type Limiter interface {
	// Allow returns a RATE_LIMITED error once the failure budget for key is
	// spent and the window has not yet expired.
	Allow(ctx context.Context, key string) error
	// RecordFailure counts one failed attempt against key.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears the failures recorded for key.
	Reset(ctx context.Context, key string) error
}

// LoginLimiter is a fixed-window failure counter stored in Redis. The window
// starts at the first failure and the counter expires with it. Increment and
// expiry are applied in one script.
type LoginLimiter struct {
	client      *redis.Client
	maxFailures int
	window      time.Duration
}

// NewLoginLimiter creates a Redis-backed limiter.
func NewLoginLimiter(client *redis.Client, maxFailures int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
	}
}

func (l *LoginLimiter) Allow(ctx context.Context, key string) error {
	n, err := l.client.Get(ctx, redisKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get login failures: %w", err)
	}
	if n >= l.maxFailures {
		return apperrors.RateLimited("too many failed login attempts, try again later")
	}
	return nil
}

func (l *LoginLimiter) RecordFailure(ctx context.Context, key string) error {
	err := recordFailure.Run(ctx, l.client, []string{redisKey(key)}, l.window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis record login failure: %w", err)
	}
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del login failures: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(key))
}

// Noop never throttles. It is used when throttling is disabled.
type Noop struct{}

func (Noop) Allow(context.Context, string) error         { return nil }
func (Noop) RecordFailure(context.Context, string) error { return nil }
func (Noop) Reset(context.Context, string) error         { return nil }
